package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiftError_Error_IncludesCode(t *testing.T) {
	err := New(ErrCodeIndexNotFound, "index database not found: out/index.db", nil)
	assert.Equal(t, "[ERR_501_INDEX_NOT_FOUND] index database not found: out/index.db", err.Error())
}

func TestSiftError_Error_IncludesCause(t *testing.T) {
	// Given: an error wrapping two joined engine failures
	cause := errors.Join(errors.New("local: tesseract exited 1"), errors.New("remote: HTTP 403"))

	// When: it is wrapped and rendered
	err := New(ErrCodeOCRFailed, "all OCR engines failed", cause)

	// Then: the message keeps every reason
	assert.Contains(t, err.Error(), "[ERR_404_OCR_FAILED] all OCR engines failed: ")
	assert.Contains(t, err.Error(), "local: tesseract exited 1")
	assert.Contains(t, err.Error(), "remote: HTTP 403")
}

func TestSiftError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("no such file")

	// When: wrapping it
	err := New(ErrCodeFileNotFound, "manifest missing", cause)

	// Then: the chain is preserved
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestSiftError_Is_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("group: %w", New(ErrCodeEmptyCorpus, "no documents", nil))

	assert.True(t, HasCode(err, ErrCodeEmptyCorpus))
	assert.False(t, HasCode(err, ErrCodeFitFailed))
	assert.Equal(t, ErrCodeEmptyCorpus, GetCode(err))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeManifestColumnMissing, CategoryInput},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeOCRFailed, CategoryExtraction},
		{ErrCodeNoTextFiles, CategoryIndex},
		{ErrCodeMethodUnavailable, CategoryGrouping},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, categoryFromCode(tt.code))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NetworkError("timeout", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NetworkError("timeout", nil))))
	assert.False(t, IsRetryable(New(ErrCodeFileWrite, "disk", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeManifestColumnMissing, "missing column", nil).
		WithDetail("field", "document_id").
		WithSuggestion("add a 'Document ID' column")

	assert.Equal(t, "document_id", err.Details["field"])
	assert.Equal(t, "add a 'Document ID' column", err.Suggestion)
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeIndexNotFound, "index database not found", nil).
		WithSuggestion("run 'docsift index build' first")

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: index database not found")
	assert.Contains(t, out, "Hint: run 'docsift index build' first")
	assert.Contains(t, out, "Code: ERR_501_INDEX_NOT_FOUND")

	assert.Contains(t, FormatForCLI(errors.New("boom")), ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	data, err := FormatJSON(New(ErrCodeFitFailed, "lda diverged", errors.New("nan")))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"code":"ERR_604_FIT_FAILED"`)
	assert.Contains(t, string(data), `"cause":"nan"`)
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestRetry_PermanentErrorAbortsImmediately(t *testing.T) {
	calls := 0
	writeErr := errors.New("read-only filesystem")

	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return Permanent(writeErr)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, writeErr, err)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetry(3), func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(2), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("once")
		}
		return "page text", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "page text", got)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 2 failures
	cb := NewCircuitBreaker("ocr.space", WithMaxFailures(2), WithResetTimeout(time.Minute))
	failing := func() error { return errors.New("503") }

	// When: two calls fail
	require.Error(t, cb.Execute(failing))
	require.Error(t, cb.Execute(failing))

	// Then: the circuit is open and rejects without calling
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("ocr.space", WithMaxFailures(1), WithResetTimeout(time.Second))
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Execute(func() error { return errors.New("down") }))
	assert.Equal(t, StateOpen, cb.State())

	// After the reset timeout one probe is allowed; success closes the circuit.
	now = now.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	got, err := CircuitCall(cb, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestReason(t *testing.T) {
	inner := New(ErrCodeHTTPStatus, "HTTP 404", nil)
	outer := New(ErrCodeDocumentCorrupt, "cannot read pdf", fmt.Errorf("open pdf: %w", inner))

	assert.Equal(t, "cannot read pdf: open pdf: [ERR_303_HTTP_STATUS] HTTP 404", Reason(outer))
	assert.Equal(t, "HTTP 404", Reason(inner))
	assert.Equal(t, "plain", Reason(errors.New("plain")))
	assert.Empty(t, Reason(nil))
}
