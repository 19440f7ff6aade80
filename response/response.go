package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Total int `json:"total"`
}

const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeServiceUnavail   = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	ErrCodePasswordRequired = "PASSWORD_REQUIRED"
	ErrCodeWrongPassword    = "WRONG_PASSWORD"
	ErrCodeVersionConflict  = "VERSION_CONFLICT"
	ErrCodeEventFull        = "EVENT_FULL"
	ErrCodeUploadTimeout    = "UPLOAD_TIMEOUT"
	ErrCodeServerConfig     = "SERVER_CONFIGURATION_ERROR"
)

var codeStatus = map[string]int{
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeTooManyRequests:  http.StatusTooManyRequests,
	ErrCodeInternalError:    http.StatusInternalServerError,
	ErrCodeServiceUnavail:   http.StatusServiceUnavailable,
	ErrCodeValidationFailed: http.StatusBadRequest,
	ErrCodePasswordRequired: http.StatusForbidden,
	ErrCodeWrongPassword:    http.StatusUnauthorized,
	ErrCodeVersionConflict:  http.StatusConflict,
	ErrCodeEventFull:        http.StatusConflict,
	ErrCodeUploadTimeout:    http.StatusGatewayTimeout,
	ErrCodeServerConfig:     http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error code, 500 when unknown.
func StatusFor(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Success(data any) *Response {
	return &Response{Success: true, Data: data}
}

func SuccessWithTotal(data any, total int) *Response {
	return &Response{Success: true, Data: data, Meta: &Meta{Total: total}}
}

func Error(code, message string) *Response {
	return &Response{Error: &ErrorInfo{Code: code, Message: message}}
}

func ValidationFailed(details map[string]string) *Response {
	return &Response{Error: &ErrorInfo{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Details: details,
	}}
}

// OK writes a 200 success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success(data))
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Success(data))
}

// Abort writes an error envelope with the status mapped from code and stops the chain.
func Abort(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(StatusFor(code), Error(code, message))
}
