package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transfer-dashboard-backend/internal/utils"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Ok writes a success envelope
func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

// Error writes an error envelope
func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.AbortWithStatusJSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps err onto an HTTP status: caller mistakes are 400, everything else 500
func Fail(c *gin.Context, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "internal error", nil)
		return
	}

	meta := map[string]any{"errorCode": appErr.Code}
	switch appErr.Type {
	case utils.ErrorTypeInput:
		Error(c, http.StatusBadRequest, appErr.Message, meta)
	case utils.ErrorTypeDataUnavailable:
		meta["retryable"] = appErr.Retryable
		Error(c, http.StatusServiceUnavailable, appErr.Message, meta)
	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, appErr.Message, meta)
	}
}
