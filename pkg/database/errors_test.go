package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("create enrollment: %w", &pq.Error{Code: "23505"})
	assert.True(t, IsUniqueViolation(dup))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsInvalidTextRepresentation(t *testing.T) {
	bad := fmt.Errorf("find quiz: %w", &pq.Error{Code: "22P02"})
	assert.True(t, IsInvalidTextRepresentation(bad))
	assert.False(t, IsInvalidTextRepresentation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(bad))
	assert.False(t, IsInvalidTextRepresentation(nil))
}
