package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/clearmint/captable/internal/api/shared/errors"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondNotFound responds with a not found error
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, apierrors.NewNotFoundError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, apierrors.NewValidationError(message))
}

// respondInternalError responds with an internal server error
func respondInternalError(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusInternalServerError, apierrors.NewInternalError(message, details...))
}

// statusForCode maps error codes to HTTP statuses
func statusForCode(code apierrors.ErrorCode) int {
	switch code {
	case apierrors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case apierrors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case apierrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apierrors.ErrCodeConflict:
		return http.StatusConflict
	case apierrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apierrors.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates an executor error to the right HTTP status. Errors
// that are not APIErrors fall back to 500.
func respondError(c *gin.Context, err error) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(statusForCode(apiErr.Code), apiErr)
		return
	}
	respondInternalError(c, "Internal server error")
}
