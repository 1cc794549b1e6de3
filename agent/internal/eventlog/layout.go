package eventlog

import (
	"errors"
	"fmt"
)

// EventIDProcessCreation is the Security log event for a new process.
const EventIDProcessCreation uint32 = 4688

// ErrUnsupportedSchema is returned when a record does not carry the fields
// its layout requires.
var ErrUnsupportedSchema = errors.New("unsupported record schema")

// Field names a positional string insert.
type Field string

const (
	FieldNewProcessName    Field = "NewProcessName"
	FieldParentProcessName Field = "ParentProcessName"
)

// Layout maps named fields to string insert positions for one event ID.
type Layout struct {
	Format  string
	EventID uint32
	Fields  map[Field]int
}

// ProcessCreationV0 is the 4688 layout the agent decodes.
var ProcessCreationV0 = Layout{
	Format:  "security/4688/v0",
	EventID: EventIDProcessCreation,
	Fields: map[Field]int{
		FieldNewProcessName:    5,
		FieldParentProcessName: 12,
	},
}

// MinInserts is the number of string inserts a record needs.
func (l Layout) MinInserts() int {
	n := 0
	for _, idx := range l.Fields {
		if idx+1 > n {
			n = idx + 1
		}
	}
	return n
}

// Check reports whether r can be decoded with this layout.
func (l Layout) Check(r Record) error {
	if r.EventID != l.EventID {
		return fmt.Errorf("%w: %s expects event %d, record %d has event %d",
			ErrUnsupportedSchema, l.Format, l.EventID, r.RecordNumber, r.EventID)
	}
	if need := l.MinInserts(); len(r.StringInserts) < need {
		return fmt.Errorf("%w: %s needs %d string inserts, record %d has %d",
			ErrUnsupportedSchema, l.Format, need, r.RecordNumber, len(r.StringInserts))
	}
	return nil
}

// Value returns a named field. Call Check first.
func (l Layout) Value(r Record, f Field) (string, error) {
	idx, ok := l.Fields[f]
	if !ok {
		return "", fmt.Errorf("%w: %s has no field %s", ErrUnsupportedSchema, l.Format, f)
	}
	if idx >= len(r.StringInserts) {
		return "", fmt.Errorf("%w: %s field %s at %d out of range", ErrUnsupportedSchema, l.Format, f, idx)
	}
	return r.StringInserts[idx], nil
}

// ProcessCreation is a decoded 4688 record.
type ProcessCreation struct {
	RecordNumber      uint64
	NewProcessName    string
	ParentProcessName string
}

// DecodeProcessCreation decodes r using ProcessCreationV0.
func DecodeProcessCreation(r Record) (ProcessCreation, error) {
	l := ProcessCreationV0
	if err := l.Check(r); err != nil {
		return ProcessCreation{}, err
	}
	newName, err := l.Value(r, FieldNewProcessName)
	if err != nil {
		return ProcessCreation{}, err
	}
	parentName, err := l.Value(r, FieldParentProcessName)
	if err != nil {
		return ProcessCreation{}, err
	}
	if newName == "" {
		return ProcessCreation{}, fmt.Errorf("%w: record %d has an empty %s", ErrUnsupportedSchema, r.RecordNumber, FieldNewProcessName)
	}
	return ProcessCreation{
		RecordNumber:      r.RecordNumber,
		NewProcessName:    newName,
		ParentProcessName: parentName,
	}, nil
}
