// Package eventlog reads records from an OS event log and decodes the ones
// the agent reports on.
package eventlog

import (
	"context"
	"time"
)

// Record is one event log entry. Records are read-only.
type Record struct {
	RecordNumber  uint64    `json:"record_number"`
	EventID       uint32    `json:"event_id"`
	TimeWritten   time.Time `json:"time_written"`
	SourceName    string    `json:"source_name,omitempty"`
	StringInserts []string  `json:"string_inserts"`
}

// Source is an event log that can be read newest first.
type Source interface {
	// Newest returns the highest record number in the log, or 0 when the
	// log is empty.
	Newest(ctx context.Context) (uint64, error)

	// Backward opens a cursor positioned at the newest record.
	Backward(ctx context.Context) (Cursor, error)

	Close() error
}

// Cursor walks a log from newest to oldest. Next returns zero or more
// records per call and io.EOF once the oldest record has been returned.
type Cursor interface {
	Next(ctx context.Context) ([]Record, error)
	Close() error
}
