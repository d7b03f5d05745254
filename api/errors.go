package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is the JSON body of every error response.
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RequestError is an error with a known HTTP status.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func InvalidInputError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_input",
		Message: message,
	}
}

func NotFoundError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: message,
	}
}

func ConflictError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusConflict,
		Code:    "conflict",
		Message: message,
	}
}

func ServerError(message string) *RequestError {
	return &RequestError{
		Status:  http.StatusInternalServerError,
		Code:    "server_error",
		Message: message,
	}
}

// HandleRequestError writes err as a JSON error response. Errors that are not
// a *RequestError become a generic 500.
func HandleRequestError(c *gin.Context, err error) {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		slog.Error("unhandled request error", "path", c.Request.URL.Path, "error", err)
		reqErr = ServerError("An unexpected error occurred.")
	}
	c.AbortWithStatusJSON(reqErr.Status, Error{
		Error:            reqErr.Code,
		ErrorDescription: reqErr.Message,
	})
}
