package logstream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keepwatching/logtail/internal/logparse"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/valyala/fastjson"
)

var (
	// ErrMalformed is returned for payloads that do not decode into a record.
	ErrMalformed = errors.New("logstream: malformed payload")
	// ErrHeartbeat is returned for keepalive payloads carrying no record.
	ErrHeartbeat = errors.New("logstream: heartbeat")
)

// controlEventTypes are SSE event names that never carry a record.
var controlEventTypes = map[string]bool{
	"heartbeat": true,
	"ping":      true,
	"keepalive": true,
	"connected": true,
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
}

// commonKeys are consumed by the record itself and never copied into
// AppOrigin.Fields.
var commonKeys = map[string]bool{
	"timestamp": true, "time": true, "service": true, "level": true,
	"message": true, "msg": true, "logId": true, "id": true,
}

// Decoder turns SSE data payloads into records. It is safe for concurrent
// use; parsers are pooled.
type Decoder struct {
	pool  fastjson.ParserPool
	newID func() string
}

// NewDecoder returns a Decoder that assigns random UUIDs to records whose
// payload has no id.
func NewDecoder() *Decoder {
	return &Decoder{newID: uuid.NewString}
}

// Decode parses one payload. Every error wraps ErrMalformed or ErrHeartbeat.
func (d *Decoder) Decode(data []byte) (model.LogRecord, error) {
	var rec model.LogRecord

	p := d.pool.Get()
	defer d.pool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v.Type() != fastjson.TypeObject {
		return rec, fmt.Errorf("%w: want object, got %s", ErrMalformed, v.Type())
	}
	if typ := string(v.GetStringBytes("type")); controlEventTypes[typ] && !v.Exists("message") {
		return rec, ErrHeartbeat
	}

	msg := v.Get("message")
	if msg == nil {
		msg = v.Get("msg")
	}
	if msg == nil || msg.Type() != fastjson.TypeString {
		return rec, fmt.Errorf("%w: missing message", ErrMalformed)
	}
	rec.Message = string(msg.GetStringBytes())

	service := strings.TrimSpace(string(v.GetStringBytes("service")))
	if service == "" {
		return rec, fmt.Errorf("%w: missing service", ErrMalformed)
	}
	rec.Service = model.Service(service)

	level, err := decodeLevel(v.Get("level"))
	if err != nil {
		status, ok := accessStatus(v)
		if v.Exists("level") || !ok {
			return rec, err
		}
		level = logparse.StatusLevel(status)
	}
	rec.Level = level

	ts := v.Get("timestamp")
	if ts == nil {
		ts = v.Get("time")
	}
	rec.Timestamp, err = decodeTimestamp(ts)
	if err != nil {
		return rec, err
	}

	rec.ID = string(v.GetStringBytes("logId"))
	if rec.ID == "" {
		if idv := v.Get("id"); idv != nil {
			rec.ID = scalarString(idv)
		}
	}
	if rec.ID == "" {
		rec.ID = d.newID()
	}

	rec.Origin = decodeOrigin(v)
	rec.Raw = append([]byte(nil), data...)
	return rec, nil
}

func decodeLevel(v *fastjson.Value) (model.Level, error) {
	if v == nil {
		return "", fmt.Errorf("%w: missing level", ErrMalformed)
	}
	switch v.Type() {
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		if lvl, ok := logparse.ParseLevel(s); ok {
			return lvl, nil
		}
		return "", fmt.Errorf("%w: unknown level %q", ErrMalformed, s)
	case fastjson.TypeNumber:
		n, err := v.Int()
		if err != nil {
			return "", fmt.Errorf("%w: level: %v", ErrMalformed, err)
		}
		return logparse.PinoLevel(n), nil
	}
	return "", fmt.Errorf("%w: level is %s", ErrMalformed, v.Type())
}

// accessStatus returns the HTTP status of an nginx access line, which
// carries no level of its own.
func accessStatus(v *fastjson.Value) (int, bool) {
	if v.GetStringBytes("remoteAddr") == nil {
		return 0, false
	}
	status := v.GetInt("status")
	return status, status > 0
}

func decodeTimestamp(v *fastjson.Value) (time.Time, error) {
	if v == nil {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	switch v.Type() {
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
	case fastjson.TypeNumber:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp is %s", ErrMalformed, v.Type())
}

// decodeOrigin picks the origin variant from distinguishing fields:
// a stack trace wins, then a request object, then nginx access fields.
func decodeOrigin(v *fastjson.Value) model.Origin {
	if stack := v.GetStringBytes("stack"); stack != nil {
		return model.ErrorOrigin{
			Name:  string(v.GetStringBytes("name")),
			Stack: string(stack),
			Path:  firstString(v, []string{"path"}, []string{"request", "url"}),
		}
	}
	if stack := v.GetStringBytes("error", "stack"); stack != nil {
		return model.ErrorOrigin{
			Name:  string(v.GetStringBytes("error", "name")),
			Stack: string(stack),
			Path:  firstString(v, []string{"path"}, []string{"request", "url"}),
		}
	}
	if req := v.Get("request"); req != nil && req.Type() == fastjson.TypeObject {
		o := model.RequestOrigin{
			Method:       string(req.GetStringBytes("method")),
			URL:          firstString(req, []string{"url"}, []string{"path"}),
			Status:       v.GetInt("response", "statusCode"),
			RequestBody:  jsonText(req.Get("body")),
			ResponseBody: jsonText(v.Get("response", "body")),
		}
		if o.Status == 0 {
			o.Status = v.GetInt("response", "status")
		}
		if ms := firstNumber(v, []string{"responseTime"}, []string{"duration"}, []string{"response", "responseTime"}); ms > 0 {
			o.Duration = time.Duration(ms * float64(time.Millisecond))
		}
		return o
	}
	if addr := v.GetStringBytes("remoteAddr"); addr != nil {
		return model.AccessOrigin{
			RemoteAddr: string(addr),
			Request:    string(v.GetStringBytes("request")),
			Status:     v.GetInt("status"),
			BytesSent:  v.GetInt64("bytesSent"),
			Referer:    string(v.GetStringBytes("httpReferer")),
			UserAgent:  string(v.GetStringBytes("httpUserAgent")),
		}
	}

	var fields map[string]string
	obj := v.GetObject()
	obj.Visit(func(key []byte, val *fastjson.Value) {
		k := string(key)
		if commonKeys[k] {
			return
		}
		s := scalarString(val)
		if s == "" {
			return
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[k] = s
	})
	return model.AppOrigin{Fields: fields}
}

func firstString(v *fastjson.Value, paths ...[]string) string {
	for _, p := range paths {
		if s := v.GetStringBytes(p...); len(s) > 0 {
			return string(s)
		}
	}
	return ""
}

func firstNumber(v *fastjson.Value, paths ...[]string) float64 {
	for _, p := range paths {
		if n := v.Get(p...); n != nil && n.Type() == fastjson.TypeNumber {
			f, _ := n.Float64()
			return f
		}
	}
	return 0
}

// scalarString renders strings, numbers, and booleans; composites yield "".
func scalarString(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case fastjson.TypeTrue:
		return "true"
	case fastjson.TypeFalse:
		return "false"
	}
	return ""
}

// jsonText returns string values verbatim and re-encodes anything else.
func jsonText(v *fastjson.Value) string {
	if v == nil || v.Type() == fastjson.TypeNull {
		return ""
	}
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return string(v.MarshalTo(nil))
}
