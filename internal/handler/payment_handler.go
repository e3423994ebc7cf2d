package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type paymentService interface {
	Initiate(ctx context.Context, userID string, req models.InitiatePaymentRequest) (*models.SecurityFee, error)
	UploadReceipt(ctx context.Context, userID, feeID string, upload *service.ReceiptUpload) (*models.SecurityFee, error)
	Decide(ctx context.Context, adminID, feeID string, req models.DecidePaymentRequest) (*models.SecurityFee, error)
	ListMine(ctx context.Context, userID string) ([]models.SecurityFeeDetail, error)
	ListPending(ctx context.Context) ([]models.SecurityFeeDetail, error)
}

type feeExporter interface {
	FeeLedger(ctx context.Context, req service.FeeLedgerExportRequest) (*service.ExportResult, error)
}

// PaymentHandler exposes the security fee workflow.
type PaymentHandler struct {
	service  paymentService
	exporter feeExporter
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(svc paymentService, exporter feeExporter) *PaymentHandler {
	return &PaymentHandler{service: svc, exporter: exporter}
}

// Initiate godoc
// @Summary Create security fee
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.InitiatePaymentRequest true "Course to pay for"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/create [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.InitiatePaymentRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	fee, err := h.service.Initiate(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// UploadReceipt godoc
// @Summary Upload payment receipt
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param feeId path string true "Security fee ID"
// @Param receipt formData file true "Receipt image or PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/upload/{feeId} [post]
func (h *PaymentHandler) UploadReceipt(c *gin.Context) {
	feeID, ok := pathID(c, "feeId", "security fee")
	if !ok {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	header, err := c.FormFile("receipt")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "receipt file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read receipt"))
		return
	}
	defer file.Close() //nolint:errcheck

	fee, err := h.service.UploadReceipt(c.Request.Context(), claims.UserID, feeID, &service.ReceiptUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// ListMine godoc
// @Summary List my security fees
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/my [get]
func (h *PaymentHandler) ListMine(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	fees, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// ListPending godoc
// @Summary List fees awaiting approval
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/pending [get]
func (h *PaymentHandler) ListPending(c *gin.Context) {
	fees, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// Decide godoc
// @Summary Approve or reject a security fee
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Security fee ID"
// @Param payload body models.DecidePaymentRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Decide(c *gin.Context) {
	id, ok := pathID(c, "id", "security fee")
	if !ok {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.DecidePaymentRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	fee, err := h.service.Decide(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Export godoc
// @Summary Export the security fee ledger
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "pending, approved or rejected"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	result, err := h.exporter.FeeLedger(c.Request.Context(), service.FeeLedgerExportRequest{
		Format: c.Query("format"),
		Status: c.Query("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
