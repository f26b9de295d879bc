package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
)

const internalErrorMessage = "internal server error"

// Response is the unified API envelope.
type Response struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
}

// AppError is an error already translated to an HTTP status.
type AppError struct {
	HTTPStatus int         // HTTP status code (e.g. 400, 404, 500)
	Message    string      // Human-readable error message
	Data       interface{} // Optional detail returned to the caller
}

func (e *AppError) Error() string {
	return e.Message
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Message: msg}
}

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// SuccessMessage sends a 200 OK response with a message and optional data.
func SuccessMessage(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: msg, Data: data})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: "created", Data: data})
}

// Error sends an error response. An *AppError below 500 is returned as is;
// anything else is logged and answered with a generic message and the
// request's correlation id.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		c.JSON(appErr.HTTPStatus, Response{
			Success: false,
			Message: appErr.Message,
			Data:    appErr.Data,
		})
		return
	}

	correlationID := c.GetString(logger.RequestIDKey)
	l := logger.FromGin(c)
	l.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("unexpected error")

	c.JSON(http.StatusInternalServerError, Response{
		Success:       false,
		Message:       internalErrorMessage,
		CorrelationID: correlationID,
	})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Success: false, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Success: false, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Success: false, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Response{Success: false, Message: msg})
}

// ServerError answers 500 without echoing msg; msg is only logged.
func ServerError(c *gin.Context, msg string) {
	Error(c, errors.New(msg))
}
