package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SENTINEL_CONFIG_DIR", t.TempDir())

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

type fakeBackend struct {
	mu       sync.Mutex
	received []models.SecurityEvent
	status   int
}

func (b *fakeBackend) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", func(w http.ResponseWriter, r *http.Request) {
		var ev models.SecurityEvent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.status != 0 {
			w.WriteHeader(b.status)
			w.Write([]byte(`{"error":"event queue unavailable"}`))
			return
		}
		b.received = append(b.received, ev)
		w.Write([]byte(`{"status":"event received"}`))
	})
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"timestamp":"2024-01-15T10:30:00Z","hostname":"WS-01","event_type":"Process Creation","details":"Process 'cmd.exe' launched by 'explorer.exe'"}]`))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"UP"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"events", "send", "seed", "health"} {
		assert.True(t, names[want], "expected command %q", want)
	}
}

func TestEvents_Table(t *testing.T) {
	srv := (&fakeBackend{}).server(t)

	out, _, err := run(t, "events", "--query-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "TIMESTAMP")
	assert.Contains(t, out, "2024-01-15T10:30:00Z")
	assert.Contains(t, out, "Process 'cmd.exe' launched by 'explorer.exe'")
}

func TestEvents_JSON(t *testing.T) {
	srv := (&fakeBackend{}).server(t)

	out, _, err := run(t, "events", "--query-url", srv.URL, "-o", "json")
	require.NoError(t, err)

	var events []models.StoredEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "WS-01", events[0].Hostname)
}

func TestEvents_YAML(t *testing.T) {
	srv := (&fakeBackend{}).server(t)

	out, _, err := run(t, "events", "--query-url", srv.URL, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "hostname: WS-01")
}

func TestInvalidOutputFormat(t *testing.T) {
	_, _, err := run(t, "events", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestSend(t *testing.T) {
	backend := &fakeBackend{}
	srv := backend.server(t)

	out, _, err := run(t, "send", "--ingest-url", srv.URL,
		"--hostname", "WS-07",
		"--process", `C:\Windows\System32\cmd.exe`)
	require.NoError(t, err)
	assert.Contains(t, out, "Event sent for WS-07")

	require.Len(t, backend.received, 1)
	ev := backend.received[0]
	assert.Equal(t, "WS-07", ev.Hostname)
	assert.Equal(t, models.EventTypeProcessCreation, ev.EventType)
	assert.Equal(t, "Process 'cmd.exe' launched by 'explorer.exe'", ev.Details)
}

func TestSend_RequiresProcessOrDetails(t *testing.T) {
	_, _, err := run(t, "send", "--hostname", "WS-07")
	assert.ErrorContains(t, err, "either --process or --details is required")
}

func TestSend_ServerError(t *testing.T) {
	backend := &fakeBackend{status: http.StatusServiceUnavailable}
	srv := backend.server(t)

	_, _, err := run(t, "send", "--ingest-url", srv.URL, "--hostname", "WS-07", "--details", "x")
	assert.ErrorContains(t, err, "event queue unavailable")
}

func TestSeed(t *testing.T) {
	backend := &fakeBackend{}
	srv := backend.server(t)

	out, _, err := run(t, "seed", "--ingest-url", srv.URL, "--count", "5", "--hosts", "2", "--seed", "99")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 5 events from 2 hosts")
	assert.Len(t, backend.received, 5)
	for _, ev := range backend.received {
		assert.NoError(t, ev.Validate())
	}
}

func TestSeed_DryRun(t *testing.T) {
	out, _, err := run(t, "seed", "--count", "3", "--dry-run")
	require.NoError(t, err)

	var events []models.SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Len(t, events, 3)
}

func TestHealth(t *testing.T) {
	srv := (&fakeBackend{}).server(t)

	out, _, err := run(t, "health", "--ingest-url", srv.URL, "--query-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ingest")
	assert.Contains(t, out, "UP")
}

func TestHealth_Down(t *testing.T) {
	srv := (&fakeBackend{}).server(t)

	_, errOut, err := run(t, "health", "--ingest-url", srv.URL, "--query-url", "http://127.0.0.1:1")
	assert.ErrorContains(t, err, "1 service(s) unhealthy")
	assert.Contains(t, errOut, "query")
}
