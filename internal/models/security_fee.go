package models

import "time"

// PaymentStatus enumerates the lifecycle of a security fee.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// SecurityFee is the per student and course payment that gates enrollment.
type SecurityFee struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	EnrollmentID  *string       `db:"enrollment_id" json:"enrollment_id"`
	Amount        int64         `db:"amount" json:"amount"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	ReceiptURL    *string       `db:"receipt_url" json:"receipt_url"`
	ApprovedBy    *string       `db:"approved_by" json:"approved_by"`
	ApprovedAt    *time.Time    `db:"approved_at" json:"approved_at"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// SecurityFeeDetail enriches a fee with its student and course.
type SecurityFeeDetail struct {
	SecurityFee
	CourseTitle    string `db:"course_title" json:"course_title"`
	CourseCategory string `db:"course_category" json:"course_category"`
	StudentName    string `db:"student_name" json:"student_name"`
	StudentEmail   string `db:"student_email" json:"student_email"`
}

// SecurityFeeFilter narrows fee ledger queries.
type SecurityFeeFilter struct {
	UserID string
	Status *PaymentStatus
}

// InitiatePaymentRequest starts a fee for a course.
type InitiatePaymentRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

// DecidePaymentRequest is the admin approval payload.
type DecidePaymentRequest struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=approved rejected"`
}

// PaymentStatusTotal is one row of the fee ledger grouped by status.
type PaymentStatusTotal struct {
	Status      PaymentStatus `db:"status" json:"status"`
	Count       int           `db:"count" json:"count"`
	TotalAmount int64         `db:"total_amount" json:"totalAmount"`
}
