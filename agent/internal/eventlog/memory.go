package eventlog

import (
	"context"
	"io"
	"sort"
	"sync"
)

// MemorySource is an in-process log for tests of Source consumers such as
// the tailer.
type MemorySource struct {
	mu        sync.Mutex
	records   []Record
	batchSize int
	err       error
}

// NewMemorySource creates an empty log returning up to batchSize records
// per cursor call (default 16).
func NewMemorySource(batchSize int) *MemorySource {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &MemorySource{batchSize: batchSize}
}

// Append adds records, keeping them ordered by record number.
func (m *MemorySource) Append(records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	sort.SliceStable(m.records, func(i, j int) bool {
		return m.records[i].RecordNumber < m.records[j].RecordNumber
	})
}

// Clear removes every record, as when an operator clears the log.
func (m *MemorySource) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}

// FailWith makes every call return err until called again with nil.
func (m *MemorySource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemorySource) Newest(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if len(m.records) == 0 {
		return 0, nil
	}
	return m.records[len(m.records)-1].RecordNumber, nil
}

func (m *MemorySource) Backward(ctx context.Context) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	snapshot := make([]Record, len(m.records))
	for i, r := range m.records {
		snapshot[len(m.records)-1-i] = r
	}
	return &sliceCursor{records: snapshot, batchSize: m.batchSize}, nil
}

func (m *MemorySource) Close() error { return nil }

// sliceCursor serves records that are already ordered newest first.
type sliceCursor struct {
	records   []Record
	batchSize int
}

func (c *sliceCursor) Next(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.records) == 0 {
		return nil, io.EOF
	}
	n := min(c.batchSize, len(c.records))
	batch := c.records[:n]
	c.records = c.records[n:]
	return batch, nil
}

func (c *sliceCursor) Close() error { return nil }
