package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OriginKind discriminates the structured detail carried by a record.
type OriginKind string

const (
	OriginApp     OriginKind = "app"
	OriginRequest OriginKind = "request"
	OriginError   OriginKind = "error"
	OriginAccess  OriginKind = "access"
)

// Origin is the per-kind detail attached to a LogRecord. The concrete type
// is chosen once when the payload is decoded; consumers switch on it.
type Origin interface {
	Kind() OriginKind
}

// AppOrigin is a plain application log line. Fields holds any scalar
// payload keys outside the common record shape.
type AppOrigin struct {
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func (AppOrigin) Kind() OriginKind { return OriginApp }

// RequestOrigin carries an HTTP request/response pair logged by the API.
type RequestOrigin struct {
	Method       string        `json:"method" yaml:"method"`
	URL          string        `json:"url" yaml:"url"`
	Status       int           `json:"status,omitempty" yaml:"status,omitempty"`
	Duration     time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	RequestBody  string        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	ResponseBody string        `json:"responseBody,omitempty" yaml:"responseBody,omitempty"`
}

func (RequestOrigin) Kind() OriginKind { return OriginRequest }

// ErrorOrigin carries an error with its stack trace.
type ErrorOrigin struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Stack string `json:"stack" yaml:"stack"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (ErrorOrigin) Kind() OriginKind { return OriginError }

// AccessOrigin carries one nginx access log line.
type AccessOrigin struct {
	RemoteAddr string `json:"remoteAddr" yaml:"remoteAddr"`
	Request    string `json:"request" yaml:"request"`
	Status     int    `json:"status,omitempty" yaml:"status,omitempty"`
	BytesSent  int64  `json:"bytesSent,omitempty" yaml:"bytesSent,omitempty"`
	Referer    string `json:"referer,omitempty" yaml:"referer,omitempty"`
	UserAgent  string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

func (AccessOrigin) Kind() OriginKind { return OriginAccess }

// UnmarshalOrigin decodes the JSON form of an origin of the given kind.
// Empty data yields the zero value of that kind.
func UnmarshalOrigin(kind OriginKind, data []byte) (Origin, error) {
	var err error
	switch kind {
	case OriginRequest:
		var o RequestOrigin
		err = unmarshalDetails(data, &o)
		return o, err
	case OriginError:
		var o ErrorOrigin
		err = unmarshalDetails(data, &o)
		return o, err
	case OriginAccess:
		var o AccessOrigin
		err = unmarshalDetails(data, &o)
		return o, err
	case OriginApp, "":
		var o AppOrigin
		err = unmarshalDetails(data, &o)
		return o, err
	}
	return nil, fmt.Errorf("model: unknown origin kind %q", kind)
}

func unmarshalDetails(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
