package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	table := NewTableData("Task", "Outcome")
	table.AddRow("t-1", "ack")
	table.AddRow("t-2", "requeue")
	require.Len(t, table.Rows(), 2)

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "TASK")
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "t-2")
	assert.Contains(t, out, "requeue")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{{"Upload queue", "FILE_PART_UPLOAD"}}))
	assert.Contains(t, buf.String(), "Upload queue")
	assert.Contains(t, buf.String(), "FILE_PART_UPLOAD")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestPrintFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, map[string]int{"purged": 3}))
	assert.JSONEq(t, `{"purged":3}`, buf.String())

	buf.Reset()
	require.NoError(t, Print(&buf, FormatYAML, map[string]int{"purged": 3}))
	assert.Equal(t, "purged: 3\n", buf.String())
}
