package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Clone(ErrConflict, "already enrolled"))
	appErr := FromError(wrapped)
	assert.Equal(t, ErrConflict.Code, appErr.Code)
	assert.Equal(t, "already enrolled", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(stderrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
}

func TestIsMatchesByCode(t *testing.T) {
	err := Clone(ErrNotFound, "quiz not found")
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrConflict))
}

func TestWithDetailsDoesNotMutateTemplate(t *testing.T) {
	err := WithDetails(ErrPaymentRequired, map[string]interface{}{"course_id": "c1"})
	assert.Equal(t, "c1", err.Details["course_id"])
	assert.Nil(t, ErrPaymentRequired.Details)
}
