package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	plain := &AppError{Code: ErrCodeNotFound, Message: "agent not found"}
	assert.Equal(t, "agent not found", plain.Error())

	withCause := &AppError{
		Code:    ErrCodeInternal,
		Message: "delete agent",
		Cause:   errors.New("connection reset"),
	}
	assert.Equal(t, "delete agent: connection reset", withCause.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("row locked")
	err := Wrap(cause, ErrCodeTimeout, "poll batch")

	assert.ErrorIs(t, err, cause)
	assert.Same(t, cause, err.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", NotFound("missing"), ErrCodeNotFound},
		{"not found formatted", NotFoundf("rule %s missing", "r1"), ErrCodeNotFound},
		{"conflict", Conflict("name taken"), ErrCodeConflict},
		{"validation", Validation("bad interval"), ErrCodeValidation},
		{"foreign key", ForeignKey("agent in use"), ErrCodeForeignKey},
		{"internal", Internal("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
			assert.Nil(t, tt.err.Cause)
		})
	}

	assert.Equal(t, "rule r1 missing", NotFoundf("rule %s missing", "r1").Message)
}

func TestValidationField(t *testing.T) {
	err := ValidationField("execution_interval", "must be positive")

	assert.Equal(t, ErrCodeValidation, err.Code)
	assert.Equal(t, "execution_interval", err.Field)
	assert.Equal(t, "execution_interval", GetField(err))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))

	cause := errors.New("bad connection")
	err := Wrap(cause, ErrCodeInternal, "list rules")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeInternal, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsConflict(Conflict("x")))
	assert.True(t, IsValidation(Validation("x")))
	assert.True(t, IsForeignKey(ForeignKey("x")))
	assert.True(t, IsInternal(Internal("x")))
	assert.True(t, IsTimeout(&AppError{Code: ErrCodeTimeout}))
	assert.True(t, IsCanceled(&AppError{Code: ErrCodeCanceled}))

	assert.False(t, IsNotFound(Conflict("x")))
	assert.False(t, IsConflict(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NotFound("job gone")
	outer := fmt.Errorf("find job: %w", inner)

	assert.True(t, IsNotFound(outer))
	assert.Equal(t, ErrCodeNotFound, GetCode(outer))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeConflict, GetCode(Conflict("dup")))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(nil))
}

func TestGetField(t *testing.T) {
	assert.Equal(t, "name", GetField(ValidationField("name", "required")))
	assert.Empty(t, GetField(Validation("no field")))
	assert.Empty(t, GetField(errors.New("plain")))
}
