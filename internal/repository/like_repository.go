package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/chirper/internal/model"
)

// LikeRepository 点赞边；点赞数始终由 COUNT 派生
type LikeRepository interface {
	WithTx(tx *gorm.DB) LikeRepository
	Create(ctx context.Context, userID, tweetID uint) (created bool, err error)
	Delete(ctx context.Context, userID, tweetID uint) (removed bool, err error)
	DeleteByTweet(ctx context.Context, tweetID uint) error
	CountByTweet(ctx context.Context, tweetID uint) (int64, error)
	CountByTweets(ctx context.Context, tweetIDs []uint) (map[uint]int64, error)
	// LikedByUser 返回 tweetIDs 中被 userID 点赞过的集合
	LikedByUser(ctx context.Context, userID uint, tweetIDs []uint) (map[uint]bool, error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository { return &likeRepository{db: db} }

func (r *likeRepository) WithTx(tx *gorm.DB) LikeRepository { return &likeRepository{db: tx} }

func (r *likeRepository) Create(ctx context.Context, userID, tweetID uint) (bool, error) {
	l := &model.Like{UserID: userID, TweetID: tweetID, CreatedAt: time.Now()}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(l)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Delete(ctx context.Context, userID, tweetID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND tweet_id = ?", userID, tweetID).
		Delete(&model.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) DeleteByTweet(ctx context.Context, tweetID uint) error {
	return r.db.WithContext(ctx).Where("tweet_id = ?", tweetID).Delete(&model.Like{}).Error
}

func (r *likeRepository) CountByTweet(ctx context.Context, tweetID uint) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).Where("tweet_id = ?", tweetID).Count(&cnt).Error
	return cnt, err
}

func (r *likeRepository) CountByTweets(ctx context.Context, tweetIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(tweetIDs))
	if len(tweetIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TweetID uint
		Cnt     int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Select("tweet_id, COUNT(*) AS cnt").
		Where("tweet_id IN ?", tweetIDs).
		Group("tweet_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TweetID] = row.Cnt
	}
	return out, nil
}

func (r *likeRepository) LikedByUser(ctx context.Context, userID uint, tweetIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(tweetIDs))
	if len(tweetIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&model.Like{}).
		Where("user_id = ? AND tweet_id IN ?", userID, tweetIDs).
		Pluck("tweet_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
