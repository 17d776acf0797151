package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
		CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
		CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
		CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
		CodeInsufficientBalance: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient balance", DetailsAllowed: true, ExposeMessage: true},
		CodeCardNotActive:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "card is not active", DetailsAllowed: true, ExposeMessage: true},
		CodeLimitExceeded:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "amount exceeds limit", DetailsAllowed: true, ExposeMessage: true},
		CodeConcurrency:         {HTTPStatus: http.StatusConflict, PublicMessage: "concurrent update detected, retry the operation", Retryable: true},
		CodeDependency:          {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodeDuplicateIdentifier: {HTTPStatus: http.StatusInternalServerError, PublicMessage: "could not allocate a unique identifier"},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}
}

func TestEveryCodeIsRegistered(t *testing.T) {
	all := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeStateConflict, CodeIdempotency, CodeRateLimit, CodeInternal, CodeDependency,
		CodeCardNotActive, CodeInsufficientBalance, CodeLimitExceeded, CodeConcurrency,
		CodeDuplicateIdentifier,
	}
	for _, code := range all {
		_, ok := registry[code]
		assert.True(t, ok, "missing metadata for %s", code)
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("NOPE").HTTPStatus)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load member")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Equal(t, "DEPENDENCY_ERROR: load member", err.Error())

	plain := Wrap(CodeValidation, nil, "bad input")
	assert.NoError(t, plain.Unwrap())
}

func TestDetailsAndNilReceiver(t *testing.T) {
	err := New(CodeValidation, "amount must be positive").WithDetails(map[string]any{"field": "amount"})
	assert.Equal(t, map[string]any{"field": "amount"}, err.Details())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Message())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestAsAndHasCodeThroughFmtWrapping(t *testing.T) {
	inner := New(CodeInsufficientBalance, "balance 500 below 1200")
	outer := fmt.Errorf("apply purchase: %w", inner)

	got := As(outer)
	require.NotNil(t, got)
	assert.Same(t, inner, got)
	assert.True(t, HasCode(outer, CodeInsufficientBalance))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(nil, CodeInternal))
	assert.Nil(t, As(stdErrors.New("plain")))
}
