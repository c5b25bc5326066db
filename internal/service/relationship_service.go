package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/search"
)

// RelationshipService 关系链服务
type RelationshipService interface {
	// Follow 关注；重复关注返回 ErrAlreadyFollowing，关注自己返回 ErrFollowSelf
	Follow(ctx context.Context, followerID, followedID uint) error
	// Unfollow 取消关注；本来就没关注时 removed=false，不算错误
	Unfollow(ctx context.Context, followerID, followedID uint) (removed bool, err error)
	ListFollowing(ctx context.Context, userID uint, page, pageSize int) ([]*model.User, search.PageInfo, error)
	ListFollowers(ctx context.Context, userID uint, page, pageSize int) ([]*model.User, search.PageInfo, error)
	Counts(ctx context.Context, userID uint) (followers, following int64, err error)
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
}

type relationshipService struct {
	db          *gorm.DB
	followRepo  repository.FollowRepository
	userRepo    repository.UserRepository
	outbox      repository.OutboxRepository
	maxPageSize int
}

// NewRelationshipService db 为 users 上下文的库，关注边与 outbox 在同一事务里写入
func NewRelationshipService(db *gorm.DB, followRepo repository.FollowRepository, userRepo repository.UserRepository, outbox repository.OutboxRepository, maxPageSize int) RelationshipService {
	return &relationshipService{db: db, followRepo: followRepo, userRepo: userRepo, outbox: outbox, maxPageSize: maxPageSize}
}

func (s *relationshipService) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return ErrFollowSelf
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住被关注者，同一用户的关注边写入与粉丝计数串行执行
		if _, err := s.userRepo.WithTx(tx).GetForUpdate(ctx, followedID); err != nil {
			return storeErr(err, "user")
		}
		created, err := s.followRepo.WithTx(tx).Create(ctx, followerID, followedID)
		if err != nil {
			return err
		}
		if !created {
			return ErrAlreadyFollowing
		}
		followers, err := s.followRepo.WithTx(tx).CountFollowers(ctx, followedID)
		if err != nil {
			return err
		}
		_, err = s.outbox.WithTx(tx).Append(ctx, string(event.UserFollowed), followedID, event.FollowPayload{
			FollowerID:     followerID,
			FollowedID:     followedID,
			FollowersCount: followers,
		})
		return err
	})
	if errors.Is(err, ErrAlreadyFollowing) {
		return err
	}
	return storeErr(err, "follow")
}

func (s *relationshipService) Unfollow(ctx context.Context, followerID, followedID uint) (bool, error) {
	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.WithTx(tx).GetForUpdate(ctx, followedID); err != nil {
			return storeErr(err, "user")
		}
		var err error
		removed, err = s.followRepo.WithTx(tx).Delete(ctx, followerID, followedID)
		if err != nil || !removed {
			return err
		}
		followers, err := s.followRepo.WithTx(tx).CountFollowers(ctx, followedID)
		if err != nil {
			return err
		}
		_, err = s.outbox.WithTx(tx).Append(ctx, string(event.UserUnfollowed), followedID, event.FollowPayload{
			FollowerID:     followerID,
			FollowedID:     followedID,
			FollowersCount: followers,
		})
		return err
	})
	if err != nil {
		return false, storeErr(err, "follow")
	}
	return removed, nil
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID uint, page, pageSize int) ([]*model.User, search.PageInfo, error) {
	size, err := clampPage(page, pageSize, s.maxPageSize)
	if err != nil {
		return nil, search.PageInfo{}, err
	}
	total, err := s.followRepo.CountFollowings(ctx, userID)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "follows")
	}
	offset, ok := search.Offset(page, size, int(total))
	if !ok {
		return []*model.User{}, pageInfo(total, page, size), nil
	}
	items, err := s.followRepo.ListFollowings(ctx, userID, offset, size)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "follows")
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.FollowedID
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "users")
	}
	return users, pageInfo(total, page, size), nil
}

func (s *relationshipService) ListFollowers(ctx context.Context, userID uint, page, pageSize int) ([]*model.User, search.PageInfo, error) {
	size, err := clampPage(page, pageSize, s.maxPageSize)
	if err != nil {
		return nil, search.PageInfo{}, err
	}
	total, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "follows")
	}
	offset, ok := search.Offset(page, size, int(total))
	if !ok {
		return []*model.User{}, pageInfo(total, page, size), nil
	}
	items, err := s.followRepo.ListFollowers(ctx, userID, offset, size)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "follows")
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.FollowerID
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "users")
	}
	return users, pageInfo(total, page, size), nil
}

func (s *relationshipService) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	followers, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return 0, 0, storeErr(err, "follows")
	}
	following, err := s.followRepo.CountFollowings(ctx, userID)
	if err != nil {
		return 0, 0, storeErr(err, "follows")
	}
	return followers, following, nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	ok, err := s.followRepo.Exists(ctx, followerID, followedID)
	if err != nil {
		return false, storeErr(err, "follows")
	}
	return ok, nil
}

func pageInfo(total int64, page, perPage int) search.PageInfo {
	return search.PageInfo{
		Total:       int(total),
		Pages:       search.TotalPages(int(total), perPage),
		CurrentPage: page,
		PerPage:     perPage,
	}
}
