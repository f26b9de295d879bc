package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/middleware"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
)

// respondError maps engine errors onto HTTP responses. Anything that is not
// an engine error is an internal failure.
func respondError(c *gin.Context, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		response.Error(c, err)
		return
	}

	switch e.Kind {
	case services.KindNotFound:
		response.Error(c, &response.AppError{HTTPStatus: http.StatusNotFound, Message: e.Message, Data: gin.H{"kind": e.Kind}})
	case services.KindInvalidStageTransition:
		response.Error(c, &response.AppError{HTTPStatus: http.StatusBadRequest, Message: e.Message, Data: gin.H{
			"kind": e.Kind,
			"from": e.From,
			"to":   e.To,
		}})
	case services.KindValidation:
		response.Error(c, &response.AppError{HTTPStatus: http.StatusBadRequest, Message: e.Message, Data: gin.H{
			"kind":  e.Kind,
			"field": e.Field,
		}})
	case services.KindConflict:
		response.Error(c, &response.AppError{HTTPStatus: http.StatusBadRequest, Message: e.Message, Data: gin.H{
			"kind":    e.Kind,
			"details": e.Details,
		}})
	case services.KindUnauthorized:
		response.Error(c, &response.AppError{HTTPStatus: http.StatusUnauthorized, Message: e.Message, Data: gin.H{"kind": e.Kind}})
	default:
		response.Error(c, err)
	}
}

// bindOptionalJSON binds a JSON body when one was sent.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return services.NewValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}

// resolveActor prefers the authenticated profile over the body's userId.
func resolveActor(c *gin.Context, bodyUserID string) string {
	if id := middleware.GetActorID(c); id != "" {
		return id
	}
	return strings.TrimSpace(bodyUserID)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty input yields nil.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, services.NewValidationError(field, field+" must be a date in YYYY-MM-DD or RFC3339 format")
}

// requireDate is parseDate for mandatory query parameters.
func requireDate(c *gin.Context, field string) (time.Time, error) {
	t, err := parseDate(field, c.Query(field))
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, services.NewRequiredFieldError(field)
	}
	return *t, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
