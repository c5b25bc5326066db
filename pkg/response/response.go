package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/chirper/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// hideInternal 为 true 时 InternalError 不回显内部错误文本
var hideInternal bool

// SetHideInternal 生产模式下调用
func SetHideInternal(hide bool) { hideInternal = hide }

func JSON(c *gin.Context, status int, message string, data interface{}) {
	code := 0
	if status >= http.StatusBadRequest {
		code = status
	}
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, "created", data)
}

func BadRequest(c *gin.Context, message string) {
	JSON(c, http.StatusBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	JSON(c, http.StatusUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	JSON(c, http.StatusForbidden, message, nil)
}

func NotFound(c *gin.Context, message string) {
	JSON(c, http.StatusNotFound, message, nil)
}

func Conflict(c *gin.Context, message string) {
	JSON(c, http.StatusConflict, message, nil)
}

// ServiceUnavailable 存储暂时不可用，调用方可重试
func ServiceUnavailable(c *gin.Context, err error) {
	logger.Warn("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
	JSON(c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
}

// InternalError 记录日志并上报 Sentry；生产模式不泄露错误详情
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	msg := "internal server error"
	if !hideInternal {
		msg = err.Error()
	}
	JSON(c, http.StatusInternalServerError, msg, nil)
}
