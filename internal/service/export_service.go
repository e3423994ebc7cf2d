package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	applog "github.com/noah-isme/lms-api/pkg/logger"
)

type feeLister interface {
	List(ctx context.Context, filter models.SecurityFeeFilter) ([]models.SecurityFeeDetail, error)
}

type documentRenderer interface {
	Render(format export.Format, data export.Dataset, title string) ([]byte, error)
}

// FeeLedgerExportRequest selects the export encoding and an optional status filter.
type FeeLedgerExportRequest struct {
	Format string
	Status string
}

// ExportResult is a rendered document ready to be downloaded.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

var feeLedgerHeaders = []string{"Fee ID", "Student", "Email", "Course", "Category", "Amount", "Status", "Receipt", "Approved At", "Created At"}

// ExportService renders the security fee ledger as CSV or PDF.
type ExportService struct {
	fees     feeLister
	renderer documentRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(fees feeLister, renderer documentRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &ExportService{fees: fees, renderer: renderer, logger: logger, now: time.Now}
}

// FeeLedger renders every fee, optionally restricted to one payment status.
func (s *ExportService) FeeLedger(ctx context.Context, req FeeLedgerExportRequest) (*ExportResult, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	filter := models.SecurityFeeFilter{}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		parsed := models.PaymentStatus(status)
		switch parsed {
		case models.PaymentStatusPending, models.PaymentStatusApproved, models.PaymentStatusRejected:
			filter.Status = &parsed
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status filter")
		}
	}

	fees, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee ledger")
	}

	rows := make([]map[string]string, 0, len(fees))
	for _, fee := range fees {
		receipt := ""
		if fee.ReceiptURL != nil {
			receipt = *fee.ReceiptURL
		}
		rows = append(rows, map[string]string{
			"Fee ID":      fee.ID,
			"Student":     fee.StudentName,
			"Email":       fee.StudentEmail,
			"Course":      fee.CourseTitle,
			"Category":    fee.CourseCategory,
			"Amount":      strconv.FormatInt(fee.Amount, 10),
			"Status":      string(fee.PaymentStatus),
			"Receipt":     receipt,
			"Approved At": formatLedgerTime(fee.ApprovedAt),
			"Created At":  formatLedgerTime(&fee.CreatedAt),
		})
	}

	title := "Security Fee Ledger"
	if filter.Status != nil {
		title = fmt.Sprintf("%s (%s)", title, *filter.Status)
	}
	payload, err := s.renderer.Render(format, export.Dataset{Headers: feeLedgerHeaders, Rows: rows}, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render fee ledger")
	}

	applog.For(ctx, s.logger).Info("fee ledger exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &ExportResult{
		Filename:    fmt.Sprintf("security_fees_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Data:        payload,
		Rows:        len(rows),
	}, nil
}

func formatLedgerTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
