package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/chirper/internal/model"
)

type FollowRepository interface {
	WithTx(tx *gorm.DB) FollowRepository
	// Create 插入关注边；边已存在时返回 created=false
	Create(ctx context.Context, followerID, followedID uint) (created bool, err error)
	// Delete 删除关注边；边不存在时返回 removed=false
	Delete(ctx context.Context, followerID, followedID uint) (removed bool, err error)
	Exists(ctx context.Context, followerID, followedID uint) (bool, error)
	ListFollowers(ctx context.Context, followedID uint, offset, limit int) ([]*model.Follow, error)
	ListFollowings(ctx context.Context, followerID uint, offset, limit int) ([]*model.Follow, error)
	CountFollowers(ctx context.Context, followedID uint) (int64, error)
	CountFollowings(ctx context.Context, followerID uint) (int64, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

func (r *followRepository) WithTx(tx *gorm.DB) FollowRepository { return &followRepository{db: tx} }

func (r *followRepository) Create(ctx context.Context, followerID, followedID uint) (bool, error) {
	f := &model.Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: time.Now()}
	// 单语句 insert-if-absent：并发重复关注不会产生第二行，也不会报错
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followedID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&model.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followedID uint) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, followedID uint, offset, limit int) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where("followed_id = ?", followedID).
		Order("created_at DESC").Order("follower_id ASC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) ListFollowings(ctx context.Context, followerID uint, offset, limit int) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ?", followerID).
		Order("created_at DESC").Order("followed_id ASC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) CountFollowers(ctx context.Context, followedID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).Where("followed_id = ?", followedID).Count(&cnt).Error
	return cnt, err
}

func (r *followRepository) CountFollowings(ctx context.Context, followerID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).Where("follower_id = ?", followerID).Count(&cnt).Error
	return cnt, err
}
