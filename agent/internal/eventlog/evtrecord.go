package eventlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"
)

// Offsets into an EVENTLOGRECORD header.
const (
	offLength        = 0
	offRecordNumber  = 8
	offTimeWritten   = 16
	offEventID       = 20
	offNumStrings    = 26
	offStringOffset  = 36
	evtHeaderSize    = 56
	eventIDQualifier = 0xFFFF
)

var errShortRecord = errors.New("truncated event log record")

// parseEventLogRecords splits a ReadEventLog buffer into records. Only a bad
// record length fails the buffer; a record whose string inserts cannot be
// read is returned with nil StringInserts so layout checks skip it.
func parseEventLogRecords(buf []byte) ([]Record, error) {
	var records []Record
	for off := 0; off < len(buf); {
		if len(buf)-off < evtHeaderSize {
			return records, fmt.Errorf("%w at offset %d", errShortRecord, off)
		}
		length := int(binary.LittleEndian.Uint32(buf[off+offLength:]))
		if length < evtHeaderSize || off+length > len(buf) {
			return records, fmt.Errorf("%w: length %d at offset %d", errShortRecord, length, off)
		}
		r, _ := parseEventLogRecord(buf[off : off+length])
		records = append(records, r)
		off += length
	}
	return records, nil
}

// parseEventLogRecord decodes one record. On error the returned Record still
// carries the header fields.
func parseEventLogRecord(rec []byte) (Record, error) {
	le := binary.LittleEndian
	r := Record{
		RecordNumber: uint64(le.Uint32(rec[offRecordNumber:])),
		EventID:      le.Uint32(rec[offEventID:]) & eventIDQualifier,
		TimeWritten:  time.Unix(int64(le.Uint32(rec[offTimeWritten:])), 0).UTC(),
	}

	// SourceName follows the fixed header.
	r.SourceName, _ = readUTF16String(rec, evtHeaderSize)

	numStrings := int(le.Uint16(rec[offNumStrings:]))
	pos := int(le.Uint32(rec[offStringOffset:]))
	r.StringInserts = make([]string, 0, numStrings)
	for i := 0; i < numStrings; i++ {
		s, next := readUTF16String(rec, pos)
		if next < 0 {
			r.StringInserts = nil
			return r, fmt.Errorf("%w: record %d string %d", errShortRecord, r.RecordNumber, i)
		}
		r.StringInserts = append(r.StringInserts, s)
		pos = next
	}
	return r, nil
}

// readUTF16String decodes a NUL-terminated UTF-16LE string at pos and
// returns the position after the terminator, or -1 when unterminated.
func readUTF16String(b []byte, pos int) (string, int) {
	if pos < 0 {
		return "", -1
	}
	var units []uint16
	for ; pos+1 < len(b); pos += 2 {
		u := binary.LittleEndian.Uint16(b[pos:])
		if u == 0 {
			return string(utf16.Decode(units)), pos + 2
		}
		units = append(units, u)
	}
	return "", -1
}
