// Package apierr writes the JSON error envelope shared by every endpoint:
//
//	{"error":{"code":"not_found","message":"comment not found","request_id":"..."}}
package apierr

import (
	"errors"
	"net/http"
	"strings"

	"zynexhub/internal/logging"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-Id"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP maps a service error to a status, a stable code and a message safe
// to show to clients. Unknown errors become 500 without leaking details.
func ToHTTP(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, services.ErrInternal):
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", detail(err, services.ErrInvalidArgument)
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", detail(err, services.ErrInvalidTransition)
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, "conflict", detail(err, services.ErrConflict)
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

// detail returns the text the service appended after the sentinel, e.g.
// "op: invalid argument: content is required" -> "content is required".
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}

// Write renders err and aborts the chain. 5xx errors are logged with the
// underlying cause.
func Write(c *gin.Context, err error) {
	status, code, msg := ToHTTP(err)
	if status >= http.StatusInternalServerError {
		logging.From(c.Request.Context()).WithError(err).Error("request failed")
	}
	Abort(c, status, code, msg)
}

// Abort writes an envelope with an explicit status and code.
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   msg,
		RequestID: c.GetString(RequestIDKey),
	}})
}
