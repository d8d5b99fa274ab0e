package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freight-dashboard/internal/engine"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromEngine(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"unknown dimension", fmt.Errorf("%w: %q", engine.ErrUnknownDimension, "color"), CodeValidation, http.StatusBadRequest},
		{"invalid constraint", fmt.Errorf("%w: min exceeds max", engine.ErrInvalidConstraint), CodeValidation, http.StatusBadRequest},
		{"app error passes through", NotFound("chart not found"), CodeNotFound, http.StatusNotFound},
		{"other", stderrors.New("disk on fire"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromEngine(tt.err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.StatusCode)
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, discardLogger(), ValidationWrap(engine.ErrUnknownDimension, "Unknown filter dimension"), "req-42")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			Details   string `json:"details"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, engine.ErrUnknownDimension.Error(), body.Error.Details)
}

func TestWriteError_PlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, discardLogger(), stderrors.New("boom"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestWriteSuccessWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessWithMeta(rec, []int{1, 2}, map[string]int{"total": 10})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[1,2],"meta":{"total":10},"success":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteSuccess(rec, "ok")
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`"success":true`)))
	assert.NotContains(t, rec.Body.String(), "meta")
}
