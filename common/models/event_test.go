package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() SecurityEvent {
	return SecurityEvent{
		Timestamp: "2025-03-14T09:26:53Z",
		Hostname:  "WKSTN-042",
		EventType: EventTypeProcessCreation,
		Details:   "Process 'cmd.exe' launched by 'explorer.exe'",
	}
}

func TestNewProcessCreation(t *testing.T) {
	observed := time.Date(2025, 3, 14, 9, 26, 53, 999, time.FixedZone("CET", 3600))
	ev := NewProcessCreation("WKSTN-042", `C:\Windows\System32\cmd.exe`, `C:\Windows\explorer.exe`, observed)

	assert.Equal(t, "2025-03-14T08:26:53Z", ev.Timestamp)
	assert.Equal(t, "WKSTN-042", ev.Hostname)
	assert.Equal(t, EventTypeProcessCreation, ev.EventType)
	assert.Equal(t, "Process 'cmd.exe' launched by 'explorer.exe'", ev.Details)
	assert.NoError(t, ev.Validate())
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		`C:\Windows\System32\cmd.exe`: "cmd.exe",
		`/usr/bin/bash`:               "bash",
		`powershell.exe`:              "powershell.exe",
		`C:\Tools\`:                   "Tools",
		``:                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), "BaseName(%q)", in)
	}
}

func TestSecurityEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SecurityEvent)
		wantMsg string
	}{
		{name: "valid", mutate: func(*SecurityEvent) {}},
		{name: "missing hostname", mutate: func(e *SecurityEvent) { e.Hostname = "" }, wantMsg: "hostname is required"},
		{name: "missing timestamp", mutate: func(e *SecurityEvent) { e.Timestamp = "" }, wantMsg: "timestamp is required"},
		{name: "missing event type", mutate: func(e *SecurityEvent) { e.EventType = "" }, wantMsg: "event_type is required"},
		{name: "missing details", mutate: func(e *SecurityEvent) { e.Details = "" }, wantMsg: "details is required"},
		{name: "bad timestamp", mutate: func(e *SecurityEvent) { e.Timestamp = "yesterday" }, wantMsg: "timestamp must be an RFC 3339 timestamp"},
		{name: "offset timestamp accepted", mutate: func(e *SecurityEvent) { e.Timestamp = "2025-03-14T10:26:53+01:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSecurityEvent_WireFormat(t *testing.T) {
	data, err := json.Marshal(validEvent())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timestamp": "2025-03-14T09:26:53Z",
		"hostname": "WKSTN-042",
		"event_type": "Process Creation",
		"details": "Process 'cmd.exe' launched by 'explorer.exe'"
	}`, string(data))
}

func TestSecurityEvent_Stored(t *testing.T) {
	stored, err := validEvent().Stored()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), stored.Timestamp)
	assert.Equal(t, "WKSTN-042", stored.Hostname)

	ev := validEvent()
	ev.Timestamp = "not-a-time"
	_, err = ev.Stored()
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestStoredEvent_JSONTimestampHasOffset(t *testing.T) {
	data, err := json.Marshal(StoredEvent{Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2025-01-02T03:04:05Z"`)
}
