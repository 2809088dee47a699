package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessiontrust"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	errBadRequest = errors.New("malformed request")
	errForbidden  = errors.New("forbidden")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, sessiontrust.ErrLoginRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, sessiontrust.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, sessiontrust.ErrInvalidToken),
		errors.Is(err, sessiontrust.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, sessiontrust.ErrInvalidCredentials),
		errors.Is(err, sessiontrust.ErrAccountDisabled),
		errors.Is(err, sessiontrust.ErrInvalidTwoFactorCode),
		errors.Is(err, sessiontrust.ErrInvalidResetToken),
		errors.Is(err, sessiontrust.ErrPasswordPolicy),
		errors.Is(err, sessiontrust.ErrPasswordMismatch),
		errors.Is(err, sessiontrust.ErrPasswordReuse),
		errors.Is(err, sessiontrust.ErrInvalidCurrentPassword),
		errors.Is(err, sessiontrust.ErrInvalidEmail),
		errors.Is(err, sessiontrust.ErrAccountExists):
		return http.StatusBadRequest
	case errors.Is(err, sessiontrust.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := strings.ReplaceAll(err.Error(), "\n", ": ")
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
