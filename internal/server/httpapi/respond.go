// Package httpapi exposes the credential and session workflows over HTTP.
// It maps service outcomes to status codes and moves tokens in httponly
// cookies; business rules live in the services, not here.
package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/dkravets/backoffice/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, common.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, common.ErrWeakPassword), errors.Is(err, common.ErrInvalidCode):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrExpiredToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrPermissionDenied),
		errors.Is(err, common.ErrSelfUpdate),
		errors.Is(err, common.ErrNotActive):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrTooManyAttempts):
		status = http.StatusTooManyRequests
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = common.ErrInternal.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// clientIP returns the request origin address without the port. The
// router's RealIP middleware has already folded proxy headers into
// RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
