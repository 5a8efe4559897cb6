package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/user/docchat/internal/checklist"
	"github.com/user/docchat/internal/errx"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/run"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("write response")
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, err error) {
	appErr := classify(err)
	body := &errorBody{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	// Internal errors keep their cause out of the response.
	if appErr.Err != nil && appErr.Status != http.StatusInternalServerError {
		body.Details = appErr.Err.Error()
	}
	if appErr.Status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("code", appErr.Code).Msg("request failed")
	}
	writeJSON(w, appErr.Status, envelope{Success: false, Error: body})
}

// classify maps domain errors to an HTTP status and a stable code.
func classify(err error) *errx.AppError {
	var appErr *errx.AppError
	var timeout *run.TimeoutError
	var failed *run.FailedError
	var upstream *errx.UpstreamError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, checklist.ErrInvalidRequest):
		return errx.New(err, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid checklist request")
	case errors.As(err, &timeout):
		return errx.New(err, http.StatusGatewayTimeout, "RUN_TIMEOUT", "The assistant is taking too long to respond")
	case errors.As(err, &failed):
		return errx.New(err, http.StatusBadGateway, "RUN_FAILED", "Processing failed")
	case errors.Is(err, checklist.ErrNoResults):
		return errx.New(err, http.StatusBadGateway, "NO_RESULTS", "The assistant returned no checklist results")
	case errors.As(err, &upstream):
		return errx.WrapUpstream(err).(*errx.AppError)
	case errors.Is(err, errx.ErrProviderMisconfigured):
		return errx.New(err, http.StatusServiceUnavailable, "PROVIDER_MISCONFIGURED", "Assistant provider is not configured")
	default:
		return errx.New(err, http.StatusInternalServerError, "INTERNAL_ERROR", errx.SystemErrorMessage)
	}
}
