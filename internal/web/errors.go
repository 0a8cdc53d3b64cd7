package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error flows through respondError: the technical error is
// logged with the request ID for correlation, then mapped via
// core.MapError to a user-friendly message with an action suggestion and
// a support code. Clients never see raw internal error strings.

import (
	"errors"
	"net/http"

	"github.com/shopsift/shopsift/internal/core"
	"github.com/shopsift/shopsift/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes a
// sanitized JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps service errors to HTTP status codes. Unrecognized
// errors default to 400 since most failures here are bad inputs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunNotComplete), errors.Is(err, core.ErrAlreadyResolved):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
