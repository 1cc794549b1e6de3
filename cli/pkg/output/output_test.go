package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func newPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestMessages(t *testing.T) {
	p, out, errOut := newPrinter()

	p.Success("Created %d items", 5)
	p.Info("plain info")
	p.Warn("careful")
	p.Error("broken: %s", "boom")

	assert.Contains(t, out.String(), "✓ Created 5 items")
	assert.Contains(t, out.String(), "plain info")
	assert.Contains(t, out.String(), "⚠ careful")
	assert.Equal(t, "✗ broken: boom\n", errOut.String())
}

func TestJSON(t *testing.T) {
	p, out, _ := newPrinter()
	require.NoError(t, p.JSON(map[string]string{"hostname": "WS-01"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "WS-01", got["hostname"])
	assert.Contains(t, out.String(), "\n  ")
}

func TestYAML(t *testing.T) {
	p, out, _ := newPrinter()
	require.NoError(t, p.Structured(FormatYAML, []map[string]string{{"hostname": "WS-01"}}))

	var got []map[string]string
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "WS-01", got[0]["hostname"])
}

func TestStructured_Unsupported(t *testing.T) {
	p, _, _ := newPrinter()
	assert.Error(t, p.Structured("xml", nil))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("table"))
	assert.True(t, ValidFormat("json"))
	assert.True(t, ValidFormat("yaml"))
	assert.False(t, ValidFormat("csv"))
}

func TestTable_Render(t *testing.T) {
	table := NewTable("HOST", "TYPE")
	table.AddRow("WS-01", "Process Creation")
	table.AddRow("LAPTOP-LONGNAME", "Process Creation")

	var buf bytes.Buffer
	table.Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "HOST            "))
	assert.True(t, strings.HasPrefix(lines[1], strings.Repeat("-", len("LAPTOP-LONGNAME"))))
	assert.Contains(t, lines[3], "LAPTOP-LONGNAME  Process Creation")
}
