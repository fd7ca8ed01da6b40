package api

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" binding:"required"`
	Count *int   `json:"count" binding:"omitempty,min=3,max=15"`
	Code  string `json:"code" binding:"omitempty,max=4"`
}

func TestFieldErrors(t *testing.T) {
	n := 20
	err := binding.Validator.ValidateStruct(&sample{Count: &n, Code: "toolong"})
	require.Error(t, err)

	got := FieldErrors(err)
	require.Len(t, got, 3)
	assert.Equal(t, ValidationError{Field: "name", Tag: "required", Message: "name is required"}, got[0])
	assert.Equal(t, "count must be at most 15", got[1].Message)
	assert.Equal(t, "code must be at most 4 characters", got[2].Message)
}

func TestFieldErrors_NotAValidationError(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("unexpected EOF")))
	assert.Nil(t, FieldErrors(nil))
}
