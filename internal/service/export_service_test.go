package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/export"
	"github.com/noah-isme/eduschedule-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}
	return NewExportService(store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
}

func sampleExportDocument() export.Document {
	return export.Document{
		Title: "Timetable 1º A",
		Dataset: export.Dataset{
			Headers: []string{"Hour", "Monday"},
			Rows:    []map[string]string{{"Hour": "08:00 - 09:00", "Monday": "Matemáticas"}},
		},
	}
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Export(context.Background(), "tt-1", models.ExportFormatCSV, sampleExportDocument())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))
	assert.Equal(t, models.ExportFormatCSV, result.Format)

	parsed, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "tt-1", parsed.ResourceID)

	file, err := svc.Open(parsed.Path)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Matemáticas")
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Export(context.Background(), "tt-2", models.ExportFormatPDF, sampleExportDocument())
	require.NoError(t, err)

	parsed, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	relPath := parsed.Path
	assert.True(t, strings.HasSuffix(relPath, ".pdf"))
	require.NoError(t, svc.Delete(relPath))
	_, err = svc.Open(relPath)
	assert.Error(t, err)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t)
	_, err := svc.Export(context.Background(), "tt-3", models.ExportFormat("xlsx"), sampleExportDocument())
	assert.ErrorContains(t, err, "unsupported format")
}

func TestExportServiceCleanupKeepsFreshFiles(t *testing.T) {
	svc := newExportServiceForTest(t)
	_, err := svc.Export(context.Background(), "tt-4", models.ExportFormatCSV, sampleExportDocument())
	require.NoError(t, err)

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestExportServiceResolve(t *testing.T) {
	svc := newExportServiceForTest(t)
	result, err := svc.Export(context.Background(), "tt-5", models.ExportFormatCSV, sampleExportDocument())
	require.NoError(t, err)

	download, err := svc.Resolve(result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.MimeType)
	assert.Positive(t, download.SizeBytes)
	assert.True(t, strings.HasPrefix(download.Filename, "timetable_tt-5_"))

	_, err = svc.Resolve(result.Token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
