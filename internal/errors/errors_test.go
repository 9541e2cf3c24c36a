package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := New(ErrCodeDocNotFound, "document not found", nil)
	assert.Equal(t, "[ERR_201_DOCUMENT_NOT_FOUND] document not found", err.Error())
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeDocNotFound, "first message", nil)
	b := New(ErrCodeDocNotFound, "completely different message", nil)
	other := New(ErrCodeInvalidInput, "first message", nil)

	assert.True(t, stderrors.Is(a, b), "same code matches regardless of message")
	assert.False(t, stderrors.Is(a, other))
	assert.False(t, stderrors.Is(a, stderrors.New("plain")))
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New(ErrCodeStoreFailed, "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestError_MatchesThroughWrapping(t *testing.T) {
	inner := NotFound("doc-42")
	wrapped := fmt.Errorf("loading document: %w", inner)

	assert.True(t, IsNotFound(wrapped))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeIndexWriteFailed, "vector write failed", nil).
		WithDetail("index", "vector").
		WithDetail("attempt", "1")

	assert.Equal(t, "vector", err.Details["index"])
	assert.Equal(t, "1", err.Details["attempt"])
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeIndexUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeIndexUnavailable, err.Code)
	assert.Equal(t, "connection refused", err.Message)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestHelperConstructors(t *testing.T) {
	nf := NotFound("doc-7")
	assert.Equal(t, ErrCodeDocNotFound, nf.Code)
	assert.Equal(t, "doc-7", nf.Details["document_id"])
	assert.Contains(t, nf.Message, "doc-7")

	cause := stderrors.New("boom")
	iw := IndexWriteFailed("vector", cause)
	assert.Equal(t, ErrCodeIndexWriteFailed, iw.Code)
	assert.Equal(t, "vector", iw.Details["index"])
	assert.ErrorIs(t, iw, cause)

	iu := IndexUnavailable("lexical", cause)
	assert.Equal(t, ErrCodeIndexUnavailable, iu.Code)

	ii := InvalidInput("title is required")
	assert.Equal(t, ErrCodeInvalidInput, ii.Code)
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsIndexWriteFailed(IndexWriteFailed("vector", nil)))
	assert.True(t, IsIndexUnavailable(IndexUnavailable("graph", nil)))
	assert.True(t, IsInvalidInput(InvalidInput("bad")))

	assert.False(t, IsNotFound(InvalidInput("bad")))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(stderrors.New("plain")))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeDocNotFound, CategoryStorage},
		{ErrCodeIndexWriteFailed, CategoryIndex},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, New(tt.code, "m", nil).Category, "code %s", tt.code)
	}
}
