package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/model"
)

type TweetRepository interface {
	WithTx(tx *gorm.DB) TweetRepository
	Create(ctx context.Context, tweet *model.Tweet) error
	GetByID(ctx context.Context, id uint) (*model.Tweet, error)
	// GetForUpdate 读取并锁住推文行，同一推文的点赞写入与计数在事务内串行
	GetForUpdate(ctx context.Context, id uint) (*model.Tweet, error)
	Delete(ctx context.Context, id uint) error
	// ListTimeline 全站时间线，新到旧
	ListTimeline(ctx context.Context, offset, limit int) ([]*model.Tweet, error)
	Count(ctx context.Context) (int64, error)
}

type tweetRepository struct {
	db *gorm.DB
}

func NewTweetRepository(db *gorm.DB) TweetRepository { return &tweetRepository{db: db} }

func (r *tweetRepository) WithTx(tx *gorm.DB) TweetRepository { return &tweetRepository{db: tx} }

func (r *tweetRepository) Create(ctx context.Context, tweet *model.Tweet) error {
	return r.db.WithContext(ctx).Create(tweet).Error
}

func (r *tweetRepository) GetByID(ctx context.Context, id uint) (*model.Tweet, error) {
	var t model.Tweet
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tweetRepository) GetForUpdate(ctx context.Context, id uint) (*model.Tweet, error) {
	var t model.Tweet
	if err := forUpdate(r.db.WithContext(ctx)).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tweetRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Tweet{}, id).Error
}

func (r *tweetRepository) ListTimeline(ctx context.Context, offset, limit int) ([]*model.Tweet, error) {
	var res []*model.Tweet
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *tweetRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Tweet{}).Count(&cnt).Error
	return cnt, err
}
