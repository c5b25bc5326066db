package model

import "time"

// Follow 关注关系（follower 关注 followed）
// 复合主键 (follower_id, followed_id) 保证同一对用户只有一条边；不存在即“未关注”
type Follow struct {
	FollowerID uint      `json:"follower_id" gorm:"primaryKey;autoIncrement:false"`
	FollowedID uint      `json:"followed_id" gorm:"primaryKey;autoIncrement:false;index:idx_follow_followed"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_follow_followed"`
}

func (Follow) TableName() string { return "follows" }
