package web

// errors.go turns errors into JSON responses. The technical error is
// logged with the request ID; the client gets the core.MapError message.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/merchant-import/internal/core"
	"github.com/JonMunkholm/merchant-import/internal/logging"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message. A status of
// 0 derives one from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var jobErr *core.JobError
	switch {
	case errors.Is(err, core.ErrUnknownDomain), errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrJobActive):
		return http.StatusConflict
	case errors.Is(err, core.ErrMissingScope), errors.As(err, &jobErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
