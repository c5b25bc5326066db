package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/pkg/cache"
	"github.com/d60-Lab/chirper/pkg/logger"
)

var usernamePattern = regexp.MustCompile(`^\w{3,30}$`)

// ValidUsername 3-30 位字母数字下划线
func ValidUsername(name string) bool { return usernamePattern.MatchString(name) }

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=120"`
	Bio      string `json:"bio" binding:"max=160"`
	Location string `json:"location" binding:"max=100"`
	Website  string `json:"website" binding:"max=100"`
}

// UpdateProfileRequest 只更新非 nil 字段
type UpdateProfileRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=120"`
	Bio       *string `json:"bio" binding:"omitempty,max=160"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=255"`
	Location  *string `json:"location" binding:"omitempty,max=100"`
	Website   *string `json:"website" binding:"omitempty,max=100"`
}

// CacheStats 资料缓存命中统计
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// UserService 用户资料；读走 cache-aside，写在提交前后各失效一次缓存
type UserService interface {
	Create(ctx context.Context, req CreateUserRequest) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, id uint, req UpdateProfileRequest) (*model.User, error)
	// IDsByUsernames 供通知扇出解析 @提及
	IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error)
	CacheStats() CacheStats
}

type userService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	follows  repository.FollowRepository
	outbox   repository.OutboxRepository
	cache    cache.Cache
	ttl      time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewUserService(db *gorm.DB, userRepo repository.UserRepository, follows repository.FollowRepository, outbox repository.OutboxRepository, c cache.Cache, ttl time.Duration) UserService {
	return &userService{db: db, userRepo: userRepo, follows: follows, outbox: outbox, cache: c, ttl: ttl}
}

func profileIDKey(id uint) string { return fmt.Sprintf("profile:id:%d", id) }
func profileNameKey(name string) string { return fmt.Sprintf("profile:username:%s", name) }

func (s *userService) Create(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		return nil, invalidf("username must be 3-30 letters, digits or underscores")
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return nil, invalidf("a valid email is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalidf("name is required")
	}

	u := &model.User{
		Username: req.Username,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     strings.TrimSpace(req.Name),
		Bio:      req.Bio,
		Location: req.Location,
		Website:  req.Website,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, u); err != nil {
			return err
		}
		_, err := s.outbox.WithTx(tx).Append(ctx, string(event.ProfileCreated), u.ID, profilePayload(u, 0))
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, id uint) (*model.User, error) {
	return s.cached(ctx, profileIDKey(id), func() (*model.User, error) {
		return s.userRepo.GetByID(ctx, id)
	})
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.cached(ctx, profileNameKey(username), func() (*model.User, error) {
		return s.userRepo.GetByUsername(ctx, username)
	})
}

// cached 缓存不可用时直接读库，不影响请求
func (s *userService) cached(ctx context.Context, key string, load func() (*model.User, error)) (*model.User, error) {
	var u model.User
	err := s.cache.GetJSON(ctx, key, &u)
	if err == nil {
		s.hits.Add(1)
		return &u, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
	}
	s.misses.Add(1)

	loaded, err := load()
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if err := s.cache.SetJSON(ctx, key, loaded, s.ttl); err != nil {
		logger.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
	}
	return loaded, nil
}

func (s *userService) invalidate(ctx context.Context, u *model.User) {
	if err := s.cache.Delete(ctx, profileIDKey(u.ID), profileNameKey(u.Username)); err != nil {
		logger.Warn("profile cache invalidation failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

func (s *userService) UpdateProfile(ctx context.Context, id uint, req UpdateProfileRequest) (*model.User, error) {
	if err := validateProfile(req); err != nil {
		return nil, err
	}
	var updated *model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		u, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		applyProfile(u, req)
		u.UpdatedAt = time.Now()
		if err := users.Update(ctx, u); err != nil {
			return err
		}
		followers, err := s.follows.WithTx(tx).CountFollowers(ctx, u.ID)
		if err != nil {
			return err
		}
		if _, err := s.outbox.WithTx(tx).Append(ctx, string(event.ProfileUpdated), u.ID, profilePayload(u, followers)); err != nil {
			return err
		}
		// 提交前先删，缩小并发读把旧值写回缓存的窗口；提交后再删一次
		s.invalidate(ctx, u)
		updated = u
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "user")
	}
	s.invalidate(ctx, updated)
	return updated, nil
}

func (s *userService) IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error) {
	ids, err := s.userRepo.IDsByUsernames(ctx, usernames)
	if err != nil {
		return nil, storeErr(err, "users")
	}
	return ids, nil
}

func (s *userService) CacheStats() CacheStats {
	return CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

func validateProfile(req UpdateProfileRequest) error {
	limits := []struct {
		name string
		v    *string
		max  int
	}{
		{"name", req.Name, 120},
		{"bio", req.Bio, 160},
		{"avatar_url", req.AvatarURL, 255},
		{"location", req.Location, 100},
		{"website", req.Website, 100},
	}
	for _, l := range limits {
		if l.v != nil && utf8.RuneCountInString(*l.v) > l.max {
			return invalidf("%s exceeds %d characters", l.name, l.max)
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return invalidf("name cannot be blank")
	}
	return nil
}

func applyProfile(u *model.User, req UpdateProfileRequest) {
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
	if req.Location != nil {
		u.Location = *req.Location
	}
	if req.Website != nil {
		u.Website = *req.Website
	}
}

func profilePayload(u *model.User, followers int64) event.ProfilePayload {
	return event.ProfilePayload{
		UserID:    u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Bio:       u.Bio,
		Location:  u.Location,
		Followers: followers,
		CreatedAt: u.CreatedAt,
	}
}
