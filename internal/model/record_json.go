package model

import (
	"encoding/json"
	"time"
)

// recordJSON is the wire shape of a LogRecord. The origin kind travels
// next to the origin body so the union can be rebuilt on decode.
type recordJSON struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Service   Service         `json:"service"`
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Kind      OriginKind      `json:"kind"`
	Origin    json.RawMessage `json:"origin,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

func (r LogRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Service:   r.Service,
		Level:     r.Level,
		Message:   r.Message,
		Kind:      r.Kind(),
	}
	if r.Origin != nil {
		data, err := json.Marshal(r.Origin)
		if err != nil {
			return nil, err
		}
		out.Origin = data
	}
	if json.Valid(r.Raw) {
		out.Raw = r.Raw
	}
	return json.Marshal(out)
}

func (r *LogRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	origin, err := UnmarshalOrigin(in.Kind, in.Origin)
	if err != nil {
		return err
	}
	*r = LogRecord{
		ID:        in.ID,
		Timestamp: in.Timestamp,
		Service:   in.Service,
		Level:     in.Level,
		Message:   in.Message,
		Origin:    origin,
	}
	if len(in.Raw) > 0 {
		r.Raw = append([]byte(nil), in.Raw...)
	}
	return nil
}
