package logstream

import (
	"strconv"
	"time"

	"github.com/keepwatching/logtail/internal/model"
	"github.com/valyala/fastjson"
)

var arenas fastjson.ArenaPool

// EncodePayload renders r in the backend's stream payload shape, so that
// Decode(EncodePayload(r)) yields an equivalent record. It is used when a
// record has no Raw payload to replay.
func EncodePayload(r model.LogRecord) []byte {
	a := arenas.Get()
	defer func() {
		a.Reset()
		arenas.Put(a)
	}()

	o := a.NewObject()
	if r.ID != "" {
		o.Set("logId", a.NewString(r.ID))
	}
	o.Set("timestamp", a.NewString(r.Timestamp.UTC().Format(time.RFC3339Nano)))
	o.Set("service", a.NewString(string(r.Service)))
	o.Set("level", a.NewString(string(r.Level)))
	o.Set("message", a.NewString(r.Message))

	switch origin := r.Origin.(type) {
	case model.RequestOrigin:
		req := a.NewObject()
		req.Set("method", a.NewString(origin.Method))
		req.Set("url", a.NewString(origin.URL))
		if origin.RequestBody != "" {
			req.Set("body", a.NewString(origin.RequestBody))
		}
		o.Set("request", req)
		res := a.NewObject()
		if origin.Status != 0 {
			res.Set("statusCode", a.NewNumberInt(origin.Status))
		}
		if origin.ResponseBody != "" {
			res.Set("body", a.NewString(origin.ResponseBody))
		}
		o.Set("response", res)
		if origin.Duration > 0 {
			ms := float64(origin.Duration) / float64(time.Millisecond)
			o.Set("responseTime", a.NewNumberFloat64(ms))
		}
	case model.ErrorOrigin:
		if origin.Name != "" {
			o.Set("name", a.NewString(origin.Name))
		}
		o.Set("stack", a.NewString(origin.Stack))
		if origin.Path != "" {
			o.Set("path", a.NewString(origin.Path))
		}
	case model.AccessOrigin:
		o.Set("remoteAddr", a.NewString(origin.RemoteAddr))
		o.Set("request", a.NewString(origin.Request))
		if origin.Status != 0 {
			o.Set("status", a.NewNumberInt(origin.Status))
		}
		if origin.BytesSent != 0 {
			o.Set("bytesSent", a.NewNumberString(strconv.FormatInt(origin.BytesSent, 10)))
		}
		if origin.Referer != "" {
			o.Set("httpReferer", a.NewString(origin.Referer))
		}
		if origin.UserAgent != "" {
			o.Set("httpUserAgent", a.NewString(origin.UserAgent))
		}
	case model.AppOrigin:
		for k, v := range origin.Fields {
			if commonKeys[k] {
				continue
			}
			o.Set(k, a.NewString(v))
		}
	}
	return o.MarshalTo(nil)
}
