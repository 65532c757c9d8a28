package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/gin-gonic/gin"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

type apiError struct {
	status int
	body   errorResponse
}

func newAPIError(status int, code, msg string) apiError {
	return apiError{status: status, body: errorResponse{Error: msg, Code: code}}
}

// classify maps service errors to a status and a stable error code. Each
// user-facing state carries its own remediation text.
func classify(err error) apiError {
	var mismatch *common.PasswordMismatchError

	switch {
	case errors.As(err, &mismatch):
		e := newAPIError(http.StatusUnauthorized, "password_mismatch", "wrong password")
		remaining := mismatch.Remaining
		e.body.RemainingAttempts = &remaining
		return e
	case errors.Is(err, common.ErrLockedOut):
		return newAPIError(http.StatusTooManyRequests, "locked_out", "too many wrong passwords, try again later")
	case errors.Is(err, common.ErrShareNotFound):
		return newAPIError(http.StatusNotFound, "not_found", "share not found, check the link")
	case errors.Is(err, common.ErrShareInactive):
		return newAPIError(http.StatusForbidden, "inactive", "this share has been disabled by its owner")
	case errors.Is(err, common.ErrShareExpired):
		return newAPIError(http.StatusGone, "expired", "this share has expired, ask its owner for a new link")
	case errors.Is(err, common.ErrProjectNotLinked):
		return newAPIError(http.StatusNotFound, "project_not_found", "project not found in this share")
	case errors.Is(err, common.ErrTokenExpired):
		return newAPIError(http.StatusUnauthorized, "token_expired", "access expired, enter the password again")
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenKindMismatch),
		errors.Is(err, common.ErrTokenScopeMismatch),
		errors.Is(err, common.ErrorUnauthorized):
		return newAPIError(http.StatusUnauthorized, "invalid_token", "missing or invalid access token")
	case errors.Is(err, common.ErrCodeConflict):
		return newAPIError(http.StatusConflict, "conflict", "share code already taken")
	case errors.Is(err, common.ErrorValidation):
		return newAPIError(http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return newAPIError(http.StatusNotFound, "not_found", "not found")
	default:
		return newAPIError(http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(e.status, e.body)
}
