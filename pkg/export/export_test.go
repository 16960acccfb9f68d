package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		Title:    "Timetable",
		Subtitle: "Course 1º A",
		Dataset: Dataset{
			Headers: []string{"Hour", "Monday", "Tuesday"},
			Rows: []map[string]string{
				{"Hour": "08:00 - 09:00", "Monday": "Matemáticas\nAna García", "Tuesday": ""},
				{"Hour": "11:00 - 11:30 (Break)", "Monday": "BREAK", "Tuesday": "BREAK"},
			},
		},
		Notes: []string{"search truncated"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDocument())
	require.NoError(t, err)

	expected := "Hour,Monday,Tuesday\n" +
		"08:00 - 09:00,\"Matemáticas\nAna García\",\n" +
		"11:00 - 11:30 (Break),BREAK,BREAK\n" +
		",,\n" +
		"Note,search truncated,\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Document{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = NewPDFExporter().Render(Document{})
	assert.Error(t, err)
}
