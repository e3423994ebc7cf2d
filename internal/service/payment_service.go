package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/database"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	applog "github.com/noah-isme/lms-api/pkg/logger"
)

// receiptSniffLen matches the number of bytes mimetype inspects.
const receiptSniffLen = 3072

type securityFeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.SecurityFee, error)
	FindByIDForUser(ctx context.Context, id, userID string) (*models.SecurityFee, error)
	FindByUserCourse(ctx context.Context, userID, courseID string) (*models.SecurityFee, error)
	Create(ctx context.Context, fee *models.SecurityFee, replaceID *string) error
	AttachReceipt(ctx context.Context, id, receiptURL string) (*models.SecurityFee, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, approverID string, decidedAt time.Time) (*models.SecurityFee, error)
	List(ctx context.Context, filter models.SecurityFeeFilter) ([]models.SecurityFeeDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentLookup interface {
	FindByUserCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

type receiptStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// PaymentConfig holds fee and upload parameters.
type PaymentConfig struct {
	FeeAmount    int64
	MaxFileSize  int64
	AllowedMIMEs []string
	PublicPath   string
}

// ReceiptUpload is a receipt file received from a client.
type ReceiptUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// PaymentService runs the security fee approval workflow.
type PaymentService struct {
	fees        securityFeeRepository
	courses     courseReader
	enrollments enrollmentLookup
	storage     receiptStorage
	audit       auditWriter
	stats       statsInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         PaymentConfig
	now         func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(fees securityFeeRepository, courses courseReader, enrollments enrollmentLookup, storage receiptStorage, audit auditWriter, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger, cfg PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.FeeAmount <= 0 {
		cfg.FeeAmount = 3000
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}
	}
	if cfg.PublicPath == "" {
		cfg.PublicPath = "/uploads"
	}
	return &PaymentService{
		fees:        fees,
		courses:     courses,
		enrollments: enrollments,
		storage:     storage,
		audit:       audit,
		stats:       stats,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Initiate opens a pending security fee for the student and course.
// A previously rejected fee is replaced.
func (s *PaymentService) Initiate(ctx context.Context, userID string, req models.InitiatePaymentRequest) (*models.SecurityFee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrollment, err := s.enrollments.FindByUserCourse(ctx, userID, req.CourseID)
	switch {
	case err == nil && enrollment.Status == models.EnrollmentStatusActive:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	var replaceID *string
	existing, err := s.fees.FindByUserCourse(ctx, userID, req.CourseID)
	switch {
	case err == nil:
		switch existing.PaymentStatus {
		case models.PaymentStatusApproved:
			return nil, appErrors.Clone(appErrors.ErrConflict, "security fee already approved")
		case models.PaymentStatusPending:
			return nil, appErrors.Clone(appErrors.ErrConflict, "security fee pending approval")
		}
		replaceID = &existing.ID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load security fee")
	}

	fee := &models.SecurityFee{
		UserID:        userID,
		CourseID:      req.CourseID,
		Amount:        s.cfg.FeeAmount,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.fees.Create(ctx, fee, replaceID); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "security fee already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create security fee")
	}
	invalidateStats(ctx, s.stats, EventFeeCreated)
	return fee, nil
}

// UploadReceipt stores the payment proof for the caller's fee and resets it to pending.
func (s *PaymentService) UploadReceipt(ctx context.Context, userID, feeID string, upload *ReceiptUpload) (*models.SecurityFee, error) {
	fee, err := s.fees.FindByIDForUser(ctx, feeID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidTextRepresentation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "security fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load security fee")
	}
	if fee.PaymentStatus == models.PaymentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "security fee already approved")
	}

	if upload == nil || upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipt file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("receipt exceeds maximum size of %d bytes", s.cfg.MaxFileSize))
	}

	head := make([]byte, receiptSniffLen)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read receipt")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipt file is empty")
	}
	detected := mimetype.Detect(head)
	if !s.mimeAllowed(detected) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("receipt type %s is not allowed", detected.String()))
	}

	filename := fmt.Sprintf("receipt-%s-%d%s", fee.ID, s.now().UnixNano(), detected.Extension())
	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), s.cfg.MaxFileSize)
	stored, err := s.storage.SaveStream(filename, limited)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}

	url := path.Join(s.cfg.PublicPath, stored)
	updated, err := s.fees.AttachReceipt(ctx, fee.ID, url)
	if err != nil {
		if delErr := s.storage.Delete(stored); delErr != nil {
			applog.For(ctx, s.logger).Warn("failed to remove orphaned receipt", zap.String("file", stored), zap.Error(delErr))
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "security fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach receipt")
	}
	invalidateStats(ctx, s.stats, EventReceiptUploaded)
	return updated, nil
}

// Decide records an admin decision on a fee. Deciding again overwrites the previous decision.
func (s *PaymentService) Decide(ctx context.Context, adminID, feeID string, req models.DecidePaymentRequest) (*models.SecurityFee, error) {
	req.Status = models.PaymentStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be approved or rejected")
	}

	before, err := s.fees.FindByID(ctx, feeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidTextRepresentation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "security fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load security fee")
	}

	updated, err := s.fees.UpdateStatus(ctx, feeID, req.Status, adminID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "security fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update security fee")
	}

	s.recordDecision(ctx, adminID, before, updated)
	invalidateStats(ctx, s.stats, EventFeeDecided)
	return updated, nil
}

// ListMine returns the caller's fees with their course.
func (s *PaymentService) ListMine(ctx context.Context, userID string) ([]models.SecurityFeeDetail, error) {
	return s.list(ctx, models.SecurityFeeFilter{UserID: userID})
}

// ListPending returns every fee awaiting an admin decision.
func (s *PaymentService) ListPending(ctx context.Context) ([]models.SecurityFeeDetail, error) {
	status := models.PaymentStatusPending
	return s.list(ctx, models.SecurityFeeFilter{Status: &status})
}

func (s *PaymentService) list(ctx context.Context, filter models.SecurityFeeFilter) ([]models.SecurityFeeDetail, error) {
	fees, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list security fees")
	}
	if fees == nil {
		fees = []models.SecurityFeeDetail{}
	}
	return fees, nil
}

func (s *PaymentService) mimeAllowed(detected *mimetype.MIME) bool {
	for _, allowed := range s.cfg.AllowedMIMEs {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func (s *PaymentService) recordDecision(ctx context.Context, adminID string, before, after *models.SecurityFee) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"payment_status": before.PaymentStatus})
	newValues, _ := json.Marshal(map[string]interface{}{"payment_status": after.PaymentStatus, "approved_at": after.ApprovedAt})
	entry := &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionPaymentDecide,
		Resource:   "security_fee",
		ResourceID: &after.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		applog.For(ctx, s.logger).Warn("failed to record payment audit log", zap.String("fee_id", after.ID), zap.Error(err))
	}
}
