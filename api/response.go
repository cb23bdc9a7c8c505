package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/core"
	"github.com/tunaaoguzhann/schoolgate/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_server_error"
	ErrCodeGateNotFound   = "gate_not_found"
	ErrCodeGrantUsed      = "grant_already_used"
)

type ErrorResponse struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Recovery core.Recovery `json:"recovery,omitempty"`
	Details  any           `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes a {code, message} body. devErr, when given, is logged
// and never sent to the client.
func respondError(w http.ResponseWriter, status int, code, message string, details any, devErr error) {
	respondJSON(w, status, ErrorResponse{Code: code, Message: message, Details: details})
	if devErr != nil {
		entry := logging.Logger.WithFields(logrus.Fields{
			"status": status,
			"error":  devErr.Error(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Debug(message)
		}
	}
}

// respondGateError maps a gate failure to its status code. The current gate
// status rides along in details so the UI can render the next step.
func respondGateError(w http.ResponseWriter, err error, status *core.GateStatus) {
	code := gateStatusCode(err)
	body := ErrorResponse{
		Code:     core.ReasonCode(err),
		Message:  err.Error(),
		Recovery: core.RecoveryFor(err),
	}
	if status != nil {
		body.Details = status
	}
	var limited *core.RateLimited
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
	}
	if code >= http.StatusInternalServerError {
		logging.Logger.WithError(err).WithField("status", code).Error("gate operation failed")
		if code == http.StatusInternalServerError {
			body.Message = "An unexpected error occurred"
		}
	}
	respondJSON(w, code, body)
}

func gateStatusCode(err error) int {
	switch {
	case errors.Is(err, core.ErrMismatch), errors.Is(err, core.ErrInvalidRecipient):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrMalformedCode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrAttemptsExhausted):
		return http.StatusForbidden
	case errors.Is(err, core.ErrAlreadyConsumed), errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, core.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
