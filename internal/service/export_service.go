package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type exportReportingRepo interface {
	FindFull(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error)
}

type exportSourceRepo interface {
	CompanyByID(ctx context.Context, id int64) (*models.Company, error)
}

// ExportResult carries rendered bytes plus response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders a company's reporting slice as CSV or PDF, honoring
// the same field toggles the read API applies.
type ExportService struct {
	reporting exportReportingRepo
	source    exportSourceRepo
	settings  settingsLoader
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	maxRows   int
}

// NewExportService constructs the export service.
func NewExportService(reporting exportReportingRepo, source exportSourceRepo, settings settingsLoader, logger *zap.Logger, maxRows int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &ExportService{
		reporting: reporting,
		source:    source,
		settings:  settings,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		maxRows:   maxRows,
	}
}

// Export renders the company's current non-deleted rows.
func (s *ExportService) Export(ctx context.Context, companyID int64, format ExportFormat) (*ExportResult, error) {
	if format != ExportCSV && format != ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	company, err := s.source.CompanyByID(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "company not found")
	}

	settings, err := s.settings.Load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var courseIDs []int64
	if settings.HasCourseSettings {
		courseIDs = settings.EnabledCourseIDs()
	}

	records, err := s.reporting.FindFull(ctx, companyID, courseIDs, s.maxRows, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query reporting data")
	}

	dataset := buildDataset(records, settings)

	switch format {
	case ExportPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("%s progress report", company.Name))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("progress_%s.pdf", company.ShortName),
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("progress_%s.csv", company.ShortName),
		}, nil
	}
}

func buildDataset(records []models.ReportingRecord, settings *models.CompanySettings) export.Dataset {
	headers := make([]string, 0, len(models.ProgressFieldNames))
	for _, name := range models.ProgressFieldNames {
		if settings.FieldVisible(name) {
			headers = append(headers, name)
		}
	}

	rows := make([]map[string]string, 0, len(records))
	for i := range records {
		row := make(map[string]string, len(headers))
		for _, name := range headers {
			row[name] = stringValue(name, &records[i])
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func stringValue(name string, rec *models.ReportingRecord) string {
	switch v := fieldValue(name, rec).(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case models.ProgressStatus:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
