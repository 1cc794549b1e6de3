package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService      = "service"
	FieldRequestID    = "request_id"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldHostname     = "hostname"
	FieldEventType    = "event_type"
	FieldRecordNumber = "record_number"
	FieldSubject      = "subject"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns the elapsed time as whole milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error. A nil error logs as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "<nil>")
	}
	return slog.String(FieldError, err.Error())
}

func Hostname(name string) slog.Attr {
	return slog.String(FieldHostname, name)
}

func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

func RecordNumber(n uint64) slog.Attr {
	return slog.Uint64(FieldRecordNumber, n)
}

func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}
