// Package models holds the event types shared by the agent, the ingest and
// query services, and the storage consumer.
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimestampLayout is the wire format of SecurityEvent.Timestamp: UTC with
// second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// EventTypeProcessCreation tags events produced from process-creation records.
const EventTypeProcessCreation = "Process Creation"

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid security event")

// SecurityEvent is the unit flowing from the agent through ingest and the
// queue into the store. Values are never mutated after construction.
type SecurityEvent struct {
	Timestamp string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Hostname  string `json:"hostname" validate:"required"`
	EventType string `json:"event_type" validate:"required"`
	Details   string `json:"details" validate:"required"`
}

// StoredEvent is a persisted event as returned by the query path.
type StoredEvent struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Hostname  string    `json:"hostname" yaml:"hostname"`
	EventType string    `json:"event_type" yaml:"event_type"`
	Details   string    `json:"details" yaml:"details"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NewProcessCreation builds a process-creation event observed at observedAt.
// Only the executable names of both paths appear in the details.
func NewProcessCreation(hostname, newProcessPath, parentProcessPath string, observedAt time.Time) SecurityEvent {
	return SecurityEvent{
		Timestamp: FormatTimestamp(observedAt),
		Hostname:  hostname,
		EventType: EventTypeProcessCreation,
		Details:   fmt.Sprintf("Process '%s' launched by '%s'", BaseName(newProcessPath), BaseName(parentProcessPath)),
	}
}

// BaseName returns the last element of a Windows or POSIX path.
func BaseName(path string) string {
	path = strings.TrimRight(path, `\/`)
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all four fields are present and the timestamp parses.
// The returned error wraps ErrInvalidEvent.
func (e SecurityEvent) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be an RFC 3339 timestamp")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(msgs, "; "))
}

// Stored converts a validated event into its persisted form.
func (e SecurityEvent) Stored() (StoredEvent, error) {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("%w: parse timestamp: %v", ErrInvalidEvent, err)
	}
	return StoredEvent{
		Timestamp: ts.UTC().Truncate(time.Second),
		Hostname:  e.Hostname,
		EventType: e.EventType,
		Details:   e.Details,
	}, nil
}
