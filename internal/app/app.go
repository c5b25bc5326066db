package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/config"
	"github.com/d60-Lab/chirper/internal/api"
	"github.com/d60-Lab/chirper/internal/api/handler"
	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/service"
	"github.com/d60-Lab/chirper/pkg/cache"
	"github.com/d60-Lab/chirper/pkg/database"
)

// App 把仓储、服务、事件消费者装配在一起，api / relay / subscriber 三种进程共用
type App struct {
	cfg    *config.Config
	stores *database.Stores

	Users         service.UserService
	Relations     service.RelationshipService
	Tweets        service.TweetService
	Notifications service.NotificationService
	Search        service.SearchService
	// Events 本地消费者：检索索引 + 通知扇出
	Events *event.Router
}

func New(cfg *config.Config, stores *database.Stores, c cache.Cache) *App {
	userRepo := repository.NewUserRepository(stores.Users)
	followRepo := repository.NewFollowRepository(stores.Users)
	usersOutbox := repository.NewOutboxRepository(stores.Users)
	maxPage := cfg.Search.MaxPerPage

	a := &App{cfg: cfg, stores: stores}
	a.Users = service.NewUserService(stores.Users, userRepo, followRepo, usersOutbox, c, cfg.Cache.ProfileTTL)
	a.Relations = service.NewRelationshipService(stores.Users, followRepo, userRepo, usersOutbox, maxPage)
	a.Tweets = service.NewTweetService(stores.Tweets,
		repository.NewTweetRepository(stores.Tweets),
		repository.NewLikeRepository(stores.Tweets),
		repository.NewOutboxRepository(stores.Tweets),
		maxPage,
	)
	a.Notifications = service.NewNotificationService(repository.NewNotificationRepository(stores.Notifications), maxPage)
	a.Search = service.NewSearchService(repository.NewSearchRepository(stores.Search), cfg.Search)

	a.Events = event.NewRouter()
	service.NewSearchIndexer(a.Search).Register(a.Events)
	service.NewNotificationFanout(a.Notifications, a.Users).Register(a.Events)
	return a
}

// Engine HTTP 路由；自定义校验 tag 必须在首次绑定前注册
func (a *App) Engine(checks map[string]handler.HealthCheck) (*gin.Engine, error) {
	if err := api.RegisterValidators(); err != nil {
		return nil, err
	}
	h := handler.NewHandler(a.Users, a.Relations, a.Tweets, a.Notifications, a.Search, a.cfg.Search, checks)
	return api.NewRouter(h, a.cfg), nil
}

// Relays 每个产生事件的库一个 relay；库相同只建一个
func (a *App) Relays(sink event.Sink) []*service.OutboxRelay {
	sources := []struct {
		name string
		db   *gorm.DB
	}{
		{"users", a.stores.Users},
		{"tweets", a.stores.Tweets},
	}
	seen := map[*gorm.DB]bool{}
	var relays []*service.OutboxRelay
	for _, src := range sources {
		if seen[src.db] {
			continue
		}
		seen[src.db] = true
		relays = append(relays, service.NewOutboxRelay(src.name, repository.NewOutboxRepository(src.db), sink, a.cfg.Outbox))
	}
	return relays
}
