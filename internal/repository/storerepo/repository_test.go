package storerepo

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	apperror "marimaya/internal/errors"
)

func TestTxCommitError_MapsConcurrentWriteRejectionToConflict(t *testing.T) {
	for _, code := range []pq.ErrorCode{pqSerializationFailure, pqDeadlockDetected} {
		err := txCommitError("failed to commit sale", &pq.Error{Code: code})

		assert.IsType(t, &apperror.ConflictError{}, err)
		appErr, ok := err.(apperror.AppError)
		assert.True(t, ok)
		assert.Equal(t, "CONFLICT", appErr.Category())
	}
}

func TestTxCommitError_KeepsOtherFailuresInternal(t *testing.T) {
	cases := []error{
		&pq.Error{Code: "23505"}, // unique violation is not retryable
		errors.New("connection reset"),
	}
	for _, cause := range cases {
		err := txCommitError("failed to commit undo", cause)

		assert.IsType(t, &apperror.InternalError{}, err)
	}
}

func TestNullableString(t *testing.T) {
	assert.False(t, nullableString("").Valid)
	assert.True(t, nullableString("https://cdn.marimaya.example/silk-wrap.jpg").Valid)
}
