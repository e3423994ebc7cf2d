package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const securityFeeColumns = `id, user_id, course_id, enrollment_id, amount, payment_status, receipt_url, approved_by, approved_at, created_at, updated_at`

// SecurityFeeRepository persists the security fee ledger.
type SecurityFeeRepository struct {
	db *sqlx.DB
}

// NewSecurityFeeRepository constructs the repository.
func NewSecurityFeeRepository(db *sqlx.DB) *SecurityFeeRepository {
	return &SecurityFeeRepository{db: db}
}

// FindByID returns a fee by identifier.
func (r *SecurityFeeRepository) FindByID(ctx context.Context, id string) (*models.SecurityFee, error) {
	query := `SELECT ` + securityFeeColumns + ` FROM security_fees WHERE id = $1 LIMIT 1`
	var fee models.SecurityFee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find security fee: %w", err)
	}
	return &fee, nil
}

// FindByIDForUser returns a fee only when it belongs to the user.
func (r *SecurityFeeRepository) FindByIDForUser(ctx context.Context, id, userID string) (*models.SecurityFee, error) {
	query := `SELECT ` + securityFeeColumns + ` FROM security_fees WHERE id = $1 AND user_id = $2 LIMIT 1`
	var fee models.SecurityFee
	if err := r.db.GetContext(ctx, &fee, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user security fee: %w", err)
	}
	return &fee, nil
}

// FindByUserCourse returns the fee of a student for a course.
func (r *SecurityFeeRepository) FindByUserCourse(ctx context.Context, userID, courseID string) (*models.SecurityFee, error) {
	query := `SELECT ` + securityFeeColumns + ` FROM security_fees WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var fee models.SecurityFee
	if err := r.db.GetContext(ctx, &fee, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find security fee by course: %w", err)
	}
	return &fee, nil
}

// Create inserts a fee. When replaceID is set the referenced fee is deleted in the same transaction.
func (r *SecurityFeeRepository) Create(ctx context.Context, fee *models.SecurityFee, replaceID *string) (err error) {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin security fee transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if replaceID != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM security_fees WHERE id = $1`, *replaceID); err != nil {
			return fmt.Errorf("delete replaced security fee: %w", err)
		}
	}

	const query = `INSERT INTO security_fees (id, user_id, course_id, enrollment_id, amount, payment_status, receipt_url, approved_by, approved_at, created_at, updated_at)
VALUES (:id, :user_id, :course_id, :enrollment_id, :amount, :payment_status, :receipt_url, :approved_by, :approved_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("insert security fee: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit security fee: %w", err)
	}
	return nil
}

// AttachReceipt stores the receipt reference and moves the fee back to pending.
func (r *SecurityFeeRepository) AttachReceipt(ctx context.Context, id, receiptURL string) (*models.SecurityFee, error) {
	query := `UPDATE security_fees SET receipt_url = $2, payment_status = $3, updated_at = $4 WHERE id = $1 RETURNING ` + securityFeeColumns
	var fee models.SecurityFee
	if err := r.db.GetContext(ctx, &fee, query, id, receiptURL, models.PaymentStatusPending, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("attach receipt: %w", err)
	}
	return &fee, nil
}

// UpdateStatus records an admin decision on a fee.
func (r *SecurityFeeRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, approverID string, decidedAt time.Time) (*models.SecurityFee, error) {
	query := `UPDATE security_fees SET payment_status = $2, approved_by = $3, approved_at = $4, updated_at = $4 WHERE id = $1 RETURNING ` + securityFeeColumns
	var fee models.SecurityFee
	if err := r.db.GetContext(ctx, &fee, query, id, status, approverID, decidedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update security fee status: %w", err)
	}
	return &fee, nil
}

// List returns fees with student and course details.
func (r *SecurityFeeRepository) List(ctx context.Context, filter models.SecurityFeeFilter) ([]models.SecurityFeeDetail, error) {
	query := `
SELECT f.id, f.user_id, f.course_id, f.enrollment_id, f.amount, f.payment_status, f.receipt_url, f.approved_by, f.approved_at, f.created_at, f.updated_at,
       c.title AS course_title, c.category AS course_category, u.name AS student_name, u.email AS student_email
FROM security_fees f
JOIN courses c ON c.id = f.course_id
JOIN users u ON u.id = f.user_id`
	var conditions []string
	var args []interface{}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("f.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("f.payment_status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY f.created_at DESC"

	var fees []models.SecurityFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, fmt.Errorf("list security fees: %w", err)
	}
	return fees, nil
}
