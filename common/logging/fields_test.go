package logging

import (
	"errors"
	"testing"
	"time"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name string
		key  string
		got  string
		want string
	}{
		{"service", FieldService, Service("query").Value.String(), "query"},
		{"method", FieldMethod, Method("POST").Value.String(), "POST"},
		{"path", FieldPath, Path("/ingest").Value.String(), "/ingest"},
		{"hostname", FieldHostname, Hostname("WKSTN-01").Value.String(), "WKSTN-01"},
		{"event type", FieldEventType, EventType("Process Creation").Value.String(), "Process Creation"},
		{"subject", FieldSubject, Subject("security.events").Value.String(), "security.events"},
		{"error", FieldError, Error(errors.New("boom")).Value.String(), "boom"},
		{"nil error", FieldError, Error(nil).Value.String(), "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNumericFields(t *testing.T) {
	if attr := Status(503); attr.Key != FieldStatus || attr.Value.Int64() != 503 {
		t.Errorf("Status = %v", attr)
	}
	if attr := Duration(1500 * time.Millisecond); attr.Key != FieldDuration || attr.Value.Int64() != 1500 {
		t.Errorf("Duration = %v", attr)
	}
	if attr := RecordNumber(42); attr.Key != FieldRecordNumber || attr.Value.Uint64() != 42 {
		t.Errorf("RecordNumber = %v", attr)
	}
}
