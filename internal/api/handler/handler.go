package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/service"
)

// HealthCheck 依赖探活
type HealthCheck func(ctx context.Context) error

// Handler 聚合所有 HTTP 处理函数
type Handler struct {
	userService         service.UserService
	relService          service.RelationshipService
	tweetService        service.TweetService
	notificationService service.NotificationService
	searchService       service.SearchService
	searchCfg           config.SearchConfig
	checks              map[string]HealthCheck
}

func NewHandler(
	userService service.UserService,
	relService service.RelationshipService,
	tweetService service.TweetService,
	notificationService service.NotificationService,
	searchService service.SearchService,
	searchCfg config.SearchConfig,
	checks map[string]HealthCheck,
) *Handler {
	return &Handler{
		userService:         userService,
		relService:          relService,
		tweetService:        tweetService,
		notificationService: notificationService,
		searchService:       searchService,
		searchCfg:           searchCfg,
		checks:              checks,
	}
}

// intQuery 缺省时返回 def；非数字返回 false
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func uintParam(c *gin.Context, key string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// pageQuery 读取 page / per_page
func (h *Handler) pageQuery(c *gin.Context) (page, perPage int, ok bool) {
	if page, ok = intQuery(c, "page", 1); !ok {
		return 0, 0, false
	}
	if perPage, ok = intQuery(c, "per_page", h.searchCfg.DefaultPerPage); !ok {
		return 0, 0, false
	}
	return page, perPage, true
}
