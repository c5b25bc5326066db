package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/chirper/config"
	_ "github.com/d60-Lab/chirper/docs"
	"github.com/d60-Lab/chirper/internal/api/handler"
	"github.com/d60-Lab/chirper/internal/api/middleware"
)

// NewRouter 组装中间件与 /api/v1 路由
func NewRouter(h *handler.Handler, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := middleware.Auth(cfg.JWT.Secret)
	optional := middleware.OptionalAuth(cfg.JWT.Secret)

	v1 := r.Group("/api/v1")
	{
		s := v1.Group("/search")
		{
			s.GET("", auth, h.Search)
			s.GET("/trending", h.Trending)
			s.GET("/hashtags", h.Hashtags)
			// 索引写入由内部服务调用
			s.POST("/index", h.IndexContent)
			s.DELETE("/index/:type/:id", h.RemoveContent)
		}

		users := v1.Group("/users")
		{
			users.POST("", h.CreateUser)
			users.GET("/me", auth, h.GetMe) // 必须在 /:username 之前
			users.PUT("/profile", auth, h.UpdateProfile)
			users.GET("/:username", optional, h.GetUser)
			users.GET("/:username/followers", h.ListFollowers)
			users.GET("/:username/following", h.ListFollowing)
			users.POST("/:username/follow", auth, h.Follow)
			users.DELETE("/:username/follow", auth, h.Unfollow)
		}

		tweets := v1.Group("/tweets")
		{
			tweets.POST("", auth, h.CreateTweet)
			tweets.GET("/timeline", auth, h.Timeline)
			tweets.GET("/:id", optional, h.GetTweet)
			tweets.DELETE("/:id", auth, h.DeleteTweet)
			tweets.POST("/:id/like", auth, h.LikeTweet)
			tweets.DELETE("/:id/like", auth, h.UnlikeTweet)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.POST("/create", h.CreateNotification)
			mine := notifications.Group("", auth)
			mine.GET("", h.ListNotifications)
			mine.POST("/mark-read", h.MarkRead)
			mine.GET("/unread-count", h.UnreadCount)
			mine.DELETE("/:id", h.DeleteNotification)
		}
	}
	return r
}
