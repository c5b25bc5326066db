package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/response"
)

// writeError 把 service 层错误映射成 HTTP 状态码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrFollowSelf):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "you can only act on your own resources")
	case errors.Is(err, service.ErrAlreadyFollowing),
		errors.Is(err, service.ErrAlreadyLiked),
		errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		response.ServiceUnavailable(c, err)
	default:
		response.InternalError(c, err)
	}
}
