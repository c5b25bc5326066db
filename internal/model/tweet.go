package model

import "time"

// MaxTweetLength 推文最大字符数
const MaxTweetLength = 280

// Tweet 推文
type Tweet struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index:idx_tweet_user;not null"`
	Content   string    `json:"content" gorm:"type:varchar(280);not null"`
	ReplyToID *uint     `json:"reply_to_id,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tweet) TableName() string { return "tweets" }

// Like 点赞边，(user_id, tweet_id) 唯一；点赞数由行数派生
type Like struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	TweetID   uint      `json:"tweet_id" gorm:"primaryKey;autoIncrement:false;index:idx_like_tweet"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "likes" }
