package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alx-report/report-api/internal/models"
)

type exportSourceStub struct{}

func (exportSourceStub) CompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	return &models.Company{ID: id, Name: "Acme Corp", ShortName: "acme"}, nil
}

func TestExportCSVHonorsFieldToggles(t *testing.T) {
	rec := models.ReportingRecord{
		UserID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		CourseID: 9, CourseName: "Analysis", TimeCompleted: 1_699_000_000,
		Percentage: 100, Status: models.StatusCompleted,
	}
	reporting := &reportingReaderStub{full: []models.ReportingRecord{rec}}
	settings := defaultSettings()
	settings.Fields["email"] = false

	svc := NewExportService(reporting, exportSourceStub{}, &settingsLoaderStub{settings: settings}, nil, 100)
	result, err := svc.Export(context.Background(), 42, ExportCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "progress_acme.csv", result.Filename)

	content := string(result.Content)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "email")
	assert.Contains(t, lines[0], "firstname")
	assert.Contains(t, lines[1], "Ada")
	assert.NotContains(t, lines[1], "ada@example.com")
}

func TestExportPDFProducesDocument(t *testing.T) {
	reporting := &reportingReaderStub{full: []models.ReportingRecord{{UserID: 1, FirstName: "Ada", Status: models.StatusCompleted}}}
	svc := NewExportService(reporting, exportSourceStub{}, &settingsLoaderStub{settings: defaultSettings()}, nil, 100)

	result, err := svc.Export(context.Background(), 42, ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&reportingReaderStub{}, exportSourceStub{}, &settingsLoaderStub{settings: defaultSettings()}, nil, 100)
	_, err := svc.Export(context.Background(), 42, ExportFormat("xml"))
	require.Error(t, err)
}
