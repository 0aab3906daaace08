package logstream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

// Filter holds the server-side stream filters. The consumer never filters
// records itself; Apply encodes them into the subscription URL.
type Filter struct {
	Service model.Service
	Level   model.Level
	Start   time.Time
	End     time.Time
	Search  string
}

// IsZero reports whether no filter is set.
func (f Filter) IsZero() bool {
	return f.Service == "" && f.Level == "" && f.Start.IsZero() && f.End.IsZero() && f.Search == ""
}

// Validate rejects unknown levels and inverted date ranges.
func (f Filter) Validate() error {
	if f.Level != "" && !f.Level.Valid() {
		return fmt.Errorf("logstream: filter: unknown level %q", f.Level)
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return errors.New("logstream: filter: end is before start")
	}
	return nil
}

// Apply merges the filter into base's query string, replacing any values
// already present for the same keys.
func (f Filter) Apply(base string) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("logstream: parse url: %w", err)
	}
	q := u.Query()
	set := func(key, value string) {
		if value == "" {
			q.Del(key)
			return
		}
		q.Set(key, value)
	}
	set("service", string(f.Service))
	set("level", string(f.Level))
	set("searchTerm", strings.TrimSpace(f.Search))
	if !f.Start.IsZero() {
		set("startDate", f.Start.UTC().Format(time.RFC3339))
	} else {
		q.Del("startDate")
	}
	if !f.End.IsZero() {
		set("endDate", f.End.UTC().Format(time.RFC3339))
	} else {
		q.Del("endDate")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseFilter reads a Filter back from URL query values.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Service: model.Service(q.Get("service")),
		Level:   model.Level(strings.ToLower(q.Get("level"))),
		Search:  q.Get("searchTerm"),
	}
	var err error
	if s := q.Get("startDate"); s != "" {
		if f.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return f, fmt.Errorf("logstream: filter: startDate: %w", err)
		}
	}
	if s := q.Get("endDate"); s != "" {
		if f.End, err = time.Parse(time.RFC3339, s); err != nil {
			return f, fmt.Errorf("logstream: filter: endDate: %w", err)
		}
	}
	return f, f.Validate()
}

// Match reports whether r passes the filter. Servers that emit a stream
// use it; the consumer does not.
func (f Filter) Match(r model.LogRecord) bool {
	if f.Service != "" && r.Service != f.Service {
		return false
	}
	if f.Level != "" && r.Level != f.Level {
		return false
	}
	if !f.Start.IsZero() && r.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Timestamp.After(f.End) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.Message), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
