package cashier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a decoded webhook payload. Paddle delivers flat key/value alerts,
// form-encoded by default; Fields holds every key except alert_name, which is
// promoted to Kind. Absent keys mean "leave the local value untouched" — the
// reconciler applies partial updates, never full replaces.
type Event struct {
	Kind   EventKind
	Fields map[string]string
}

// NewEvent builds an event from a kind and a flat field set. Mostly useful in
// tests; production events come from ParseEvent or ParseEventJSON.
func NewEvent(kind EventKind, fields map[string]string) Event {
	if fields == nil {
		fields = make(map[string]string)
	}
	return Event{Kind: kind, Fields: fields}
}

// ParseEvent decodes a form-encoded webhook body.
func ParseEvent(values url.Values) (Event, error) {
	kind := values.Get("alert_name")
	if kind == "" {
		return Event{}, fmt.Errorf("%w: missing alert_name", ErrInvalidPayload)
	}

	fields := make(map[string]string, len(values))
	for key := range values {
		if key == "alert_name" {
			continue
		}
		fields[key] = values.Get(key)
	}

	return Event{Kind: EventKind(kind), Fields: fields}, nil
}

// ParseEventJSON decodes a JSON webhook body. Scalar values are coerced to
// strings so form- and JSON-delivered events look identical downstream.
func ParseEventJSON(body []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, errors.Join(ErrInvalidPayload, err)
	}

	kind, _ := raw["alert_name"].(string)
	if kind == "" {
		return Event{}, fmt.Errorf("%w: missing alert_name", ErrInvalidPayload)
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		if key == "alert_name" {
			continue
		}
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		case nil:
			// Absent and null are equivalent for partial updates.
		default:
			// Nested structures (e.g. pre-decoded passthrough) are re-encoded
			// so Passthrough can decode them uniformly.
			if b, err := json.Marshal(v); err == nil {
				fields[key] = string(b)
			}
		}
	}

	return Event{Kind: EventKind(kind), Fields: fields}, nil
}

// Get returns the raw value for key, or "" when absent.
func (e Event) Get(key string) string {
	return e.Fields[key]
}

// Has reports whether the payload carries a non-empty value for key.
func (e Event) Has(key string) bool {
	return e.Fields[key] != ""
}

// Int returns the value for key parsed as an integer.
func (e Event) Int(key string) (int, bool) {
	v, err := strconv.Atoi(e.Fields[key])
	if err != nil {
		return 0, false
	}
	return v, true
}

// Decimal returns the value for key parsed as an arbitrary-precision decimal.
func (e Event) Decimal(key string) (decimal.Decimal, bool) {
	raw := e.Fields[key]
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Time returns the value for key parsed as a timestamp. Paddle's classic API
// mixes "2006-01-02 15:04:05", bare dates and RFC 3339 across alert types.
func (e Event) Time(key string) (time.Time, bool) {
	return parseEventTime(e.Fields[key])
}

// Passthrough decodes the application-defined correlation blob echoed back by
// the provider. The blob is JSON-encoded within the payload.
func (e Event) Passthrough() (map[string]any, error) {
	raw := e.Fields["passthrough"]
	if raw == "" {
		return nil, fmt.Errorf("%w: missing passthrough", ErrInvalidPayload)
	}
	var pt map[string]any
	if err := json.Unmarshal([]byte(raw), &pt); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return pt, nil
}

var eventTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseEventTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// combineDateTime merges the calendar date of dateField with the time of day
// of timeField into a single UTC timestamp. Paddle reports effective dates
// (next_bill_date, cancellation_effective_date) as bare dates while the
// event_time carries the time of day the alert fired.
func combineDateTime(e Event, dateField, timeField string) (time.Time, bool) {
	date, ok := e.Time(dateField)
	if !ok {
		return time.Time{}, false
	}
	clock, ok := e.Time(timeField)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0,
		time.UTC,
	), true
}
