package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/response"
	"github.com/dishevent/dishevent-server/services"
	"github.com/dishevent/dishevent-server/uploads"
)

// binding errors name fields the way clients send them
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(services.JSONFieldName)
	}
}

var errorCodes = []struct {
	err     error
	code    string
	message string
}{
	{services.ErrNotAuthenticated, response.ErrCodeUnauthorized, "sign in required"},
	{services.ErrEventNotFound, response.ErrCodeNotFound, "event not found"},
	{services.ErrGuestNotFound, response.ErrCodeNotFound, "guest not found"},
	{services.ErrPermissionDenied, response.ErrCodeForbidden, "only the event owner can do this"},
	{services.ErrVersionConflict, response.ErrCodeVersionConflict, "the event was changed elsewhere, reload and try again"},
	{services.ErrEventFull, response.ErrCodeEventFull, "this event has reached its guest limit"},
	{services.ErrPasswordRequired, response.ErrCodePasswordRequired, "this event is password protected"},
	{services.ErrWrongPassword, response.ErrCodeWrongPassword, "wrong password"},
	{uploads.ErrUploadTimeout, response.ErrCodeUploadTimeout, "upload timed out, please retry"},
	{uploads.ErrURLTimeout, response.ErrCodeUploadTimeout, "upload finished but the file link timed out, please retry"},
	{uploads.ErrInvalidObjectURL, response.ErrCodeBadRequest, "not a file url from this service"},
	{uploads.ErrBucketMismatch, response.ErrCodeNotFound, "file not found"},
	{uploads.ErrObjectNotFound, response.ErrCodeNotFound, "file not found"},
	{uploads.ErrEmptyFile, response.ErrCodeBadRequest, "file is empty"},
	{identity.ErrNotConfigured, response.ErrCodeServerConfig, "server is not configured for this operation"},
}

// respondError maps a service error to the response envelope. Anything
// unrecognised is logged and reported as a generic internal error.
func respondError(c *gin.Context, err error) {
	if ve, ok := services.AsValidationError(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.ValidationFailed(ve.Fields))
		return
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			response.Abort(c, m.code, m.message)
			return
		}
	}
	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.Abort(c, response.ErrCodeInternalError, "something went wrong, please try again")
}

func badRequest(c *gin.Context, message string) {
	response.Abort(c, response.ErrCodeBadRequest, message)
}

// bindFailed reports tag failures field by field and anything else, such as
// malformed JSON, as a plain bad request.
func bindFailed(c *gin.Context, err error, message string) {
	if ve, ok := services.AsValidationError(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.ValidationFailed(ve.Fields))
		return
	}
	badRequest(c, message)
}
