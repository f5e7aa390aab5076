package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderStartsWithBOM(t *testing.T) {
	exporter := NewCSVExporter()
	out, err := exporter.Render(Dataset{
		Headers: []string{"userid", "firstname", "status"},
		Rows:    []map[string]string{{"userid": "7", "firstname": "Zoé", "status": "completed"}},
	})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	content := string(bytes.TrimPrefix(out, utf8BOM))
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "userid,firstname,status", lines[0])
	assert.Equal(t, "7,Zoé,completed", lines[1])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
