package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	err := New(ErrCodeConstraintViolation, "duplicate value", nil)
	assert.Equal(t, CategoryIndex, err.Category)
	assert.Equal(t, SeverityError, err.Severity)

	err = New(ErrCodeCorruptIndex, "bad version", nil)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.True(t, IsFatal(err))
}

func TestError_Format(t *testing.T) {
	err := ConstraintViolation("unique index violation on cn")
	assert.Equal(t, "[ERR_301_CONSTRAINT_VIOLATION] unique index violation on cn", err.Error())
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeCorruptIndex, "one", nil)
	b := New(ErrCodeCorruptIndex, "another", nil)
	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, New(ErrCodeOperations, "x", nil)))
}

func TestUnwrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk went away")
	err := StorageError("store write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeOperations, nil))
}

func TestWithDetail(t *testing.T) {
	err := OperationsError("boom", nil).WithDetail("attr", "cn")
	assert.Equal(t, "cn", err.Details["attr"])
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeOperations, GetCode(OperationsError("x", nil)))
	assert.Empty(t, GetCode(fmt.Errorf("plain")))
	assert.Equal(t, CategoryIndex, GetCategory(ConstraintViolation("x")))
}
