package public

import (
	"errors"

	"github.com/parcel-next/internal/http/response"
	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var parcelErrorRules = []mappedHandlerError{
	{target: service.ErrParcelNotFound, code: response.CodeNotFound, msg: "Parcel not found"},
	{target: service.ErrParcelAccessDenied, code: response.CodeForbidden, msg: "Access forbidden: You do not own this parcel"},
	{target: service.ErrParcelAlreadyDelivered, code: response.CodeBadRequest, msg: "Cannot cancel a delivered parcel"},
	{target: service.ErrParcelAlreadyCancelled, code: response.CodeBadRequest, msg: "Parcel order is already cancelled"},
	{target: service.ErrDestinationNotChangeable, code: response.CodeBadRequest, msg: "Cannot change destination of a delivered parcel"},
	{target: service.ErrInvalidStatusTransition, code: response.CodeBadRequest, msg: "Invalid parcel status transition"},
	{target: service.ErrInvalidParcelInput, code: response.CodeBadRequest, msg: "Invalid parcel input"},
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrEmailAlreadyRegistered, code: response.CodeConflict, msg: "Email already registered"},
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, msg: "Invalid email or password"},
	{target: service.ErrWeakPassword, code: response.CodeBadRequest, msg: "Password too short"},
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			response.Error(c, rule.code, rule.msg)
			return
		}
	}
	logger.Errorw("handler_unexpected_error",
		"path", c.FullPath(),
		"error", err,
	)
	response.Error(c, response.CodeInternal, "Internal server error")
}
