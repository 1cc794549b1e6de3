package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
)

// FileSource reads records from a JSON-lines file, one Record per line.
// The file is re-read on every call so external writers can append to it.
type FileSource struct {
	path      string
	batchSize int
	logger    *slog.Logger
}

// NewFileSource creates a source for path. A missing file reads as an empty log.
func NewFileSource(path string, batchSize int, logger *slog.Logger) *FileSource {
	if batchSize <= 0 {
		batchSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: path, batchSize: batchSize, logger: logger}
}

func (f *FileSource) Newest(ctx context.Context) (uint64, error) {
	records, err := f.load(ctx)
	if err != nil {
		return 0, err
	}
	var newest uint64
	for _, r := range records {
		newest = max(newest, r.RecordNumber)
	}
	return newest, nil
}

func (f *FileSource) Backward(ctx context.Context) (Cursor, error) {
	records, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordNumber > records[j].RecordNumber
	})
	return &sliceCursor{records: records, batchSize: f.batchSize}, nil
}

func (f *FileSource) Close() error { return nil }

func (f *FileSource) load(ctx context.Context) ([]Record, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			f.logger.Warn("skipping unparsable event file line",
				slog.String("path", f.path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return records, nil
}
