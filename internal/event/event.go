// Package event 定义跨上下文的领域事件、路由与投递通道。
//
// 事件先写入产生方库内的 outbox 表，再由 relay 投递到 Sink：
// 单进程部署直接投递给本地 Router，多进程部署经 NATS 转发。
// 消费者必须幂等，同一事件可能被投递多次。
package event

import (
	"encoding/json"
	"time"

	"github.com/d60-Lab/chirper/internal/model"
)

// Type 事件类型，也是 NATS subject 的后缀
type Type string

const (
	TweetCreated   Type = "tweet.created"
	TweetDeleted   Type = "tweet.deleted"
	TweetLiked     Type = "tweet.liked"
	TweetUnliked   Type = "tweet.unliked"
	UserFollowed   Type = "user.followed"
	UserUnfollowed Type = "user.unfollowed"
	ProfileCreated Type = "profile.created"
	ProfileUpdated Type = "profile.updated"
)

// Envelope 投递单元
type Envelope struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	AggregateID uint            `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// FromOutbox outbox 行转投递单元；事件 ID 沿用 outbox 主键
func FromOutbox(o model.OutboxEvent) Envelope {
	return Envelope{
		ID:          o.ID,
		Type:        Type(o.EventType),
		AggregateID: o.AggregateID,
		OccurredAt:  o.CreatedAt,
		Payload:     json.RawMessage(o.Payload),
	}
}

// Decode 解析 payload
func (e Envelope) Decode(dst interface{}) error {
	return json.Unmarshal(e.Payload, dst)
}

// TweetPayload tweet.created / tweet.deleted
type TweetPayload struct {
	TweetID   uint      `json:"tweet_id"`
	OwnerID   uint      `json:"owner_id"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// ReplyToID/ReplyToOwnerID 回复时非空
	ReplyToID      *uint    `json:"reply_to_id,omitempty"`
	ReplyToOwnerID *uint    `json:"reply_to_owner_id,omitempty"`
	Mentions       []string `json:"mentions,omitempty"`
}

// LikePayload tweet.liked / tweet.unliked，LikesCount 为变更后的点赞数
type LikePayload struct {
	TweetID    uint      `json:"tweet_id"`
	OwnerID    uint      `json:"owner_id"`
	LikerID    uint      `json:"liker_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	LikesCount int64     `json:"likes_count"`
}

// FollowPayload user.followed / user.unfollowed，FollowersCount 为变更后被关注者的粉丝数
type FollowPayload struct {
	FollowerID     uint  `json:"follower_id"`
	FollowedID     uint  `json:"followed_id"`
	FollowersCount int64 `json:"followers_count"`
}

// ProfilePayload profile.created / profile.updated
type ProfilePayload struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	Followers int64     `json:"followers"`
	CreatedAt time.Time `json:"created_at"`
}
