package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/model"
)

// SearchIndexer 把内容事件同步到检索索引
type SearchIndexer struct {
	search SearchService
}

func NewSearchIndexer(search SearchService) *SearchIndexer { return &SearchIndexer{search: search} }

// Register 挂到 router
func (i *SearchIndexer) Register(r *event.Router) {
	r.Handle("search-indexer", i,
		event.TweetCreated, event.TweetDeleted, event.TweetLiked, event.TweetUnliked,
		event.ProfileCreated, event.ProfileUpdated,
		event.UserFollowed, event.UserUnfollowed,
	)
}

func (i *SearchIndexer) Handle(ctx context.Context, env event.Envelope) error {
	switch env.Type {
	case event.TweetCreated:
		var p event.TweetPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return i.index(ctx, model.ContentTweet, p.TweetID, p.Content, p.OwnerID, 0, p)
	case event.TweetLiked, event.TweetUnliked:
		var p event.LikePayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return i.index(ctx, model.ContentTweet, p.TweetID, p.Content, p.OwnerID, float64(p.LikesCount), p)
	case event.TweetDeleted:
		var p event.TweetPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return ignoreNotFound(i.search.Remove(ctx, model.ContentTweet, p.TweetID))
	case event.ProfileCreated, event.ProfileUpdated:
		var p event.ProfilePayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return i.index(ctx, model.ContentProfile, p.UserID, ProfileText(p), p.UserID, float64(p.Followers), p)
	case event.UserFollowed, event.UserUnfollowed:
		var p event.FollowPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return ignoreNotFound(i.search.Rescore(ctx, model.ContentProfile, p.FollowedID, float64(p.FollowersCount)))
	}
	return nil
}

func (i *SearchIndexer) index(ctx context.Context, ct model.ContentType, id uint, text string, owner uint, score float64, src interface{}) error {
	req := IndexRequest{ContentType: ct, ContentID: id, Text: text, OwnerID: owner, EngagementScore: &score}
	switch p := src.(type) {
	case event.TweetPayload:
		req.CreatedAt = &p.CreatedAt
	case event.LikePayload:
		req.CreatedAt = &p.CreatedAt
	case event.ProfilePayload:
		req.CreatedAt = &p.CreatedAt
	}
	_, err := i.search.Index(ctx, req)
	return err
}

// ProfileText 资料在索引中的文本：用户名、昵称、简介、所在地
func ProfileText(p event.ProfilePayload) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Username, p.Name, p.Bio, p.Location} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// UserDirectory 用户名到 ID 的解析
type UserDirectory interface {
	IDsByUsernames(ctx context.Context, usernames []string) (map[string]uint, error)
}

// NotificationFanout 把关注、点赞、回复、提及事件转成通知；发给自己的事件不产生通知
type NotificationFanout struct {
	notifications NotificationService
	directory     UserDirectory
}

func NewNotificationFanout(notifications NotificationService, directory UserDirectory) *NotificationFanout {
	return &NotificationFanout{notifications: notifications, directory: directory}
}

func (f *NotificationFanout) Register(r *event.Router) {
	r.Handle("notification-fanout", f, event.UserFollowed, event.TweetLiked, event.TweetCreated)
}

func (f *NotificationFanout) Handle(ctx context.Context, env event.Envelope) error {
	switch env.Type {
	case event.UserFollowed:
		var p event.FollowPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return f.notify(ctx, env, p.FollowedID, p.FollowerID, model.NotificationFollow, "started following you", nil)
	case event.TweetLiked:
		var p event.LikePayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		ref := p.TweetID
		return f.notify(ctx, env, p.OwnerID, p.LikerID, model.NotificationLike, "liked your tweet", &ref)
	case event.TweetCreated:
		var p event.TweetPayload
		if err := env.Decode(&p); err != nil {
			return err
		}
		return f.tweetCreated(ctx, env, p)
	}
	return nil
}

func (f *NotificationFanout) tweetCreated(ctx context.Context, env event.Envelope, p event.TweetPayload) error {
	ref := p.TweetID
	notified := map[uint]bool{p.OwnerID: true}
	if p.ReplyToOwnerID != nil {
		if err := f.notify(ctx, env, *p.ReplyToOwnerID, p.OwnerID, model.NotificationReply, "replied to your tweet", &ref); err != nil {
			return err
		}
		notified[*p.ReplyToOwnerID] = true
	}
	if len(p.Mentions) == 0 {
		return nil
	}
	ids, err := f.directory.IDsByUsernames(ctx, p.Mentions)
	if err != nil {
		return err
	}
	// 按提及顺序发送，保证结果稳定
	for _, name := range p.Mentions {
		id, ok := ids[name]
		if !ok || notified[id] {
			continue
		}
		notified[id] = true
		if err := f.notify(ctx, env, id, p.OwnerID, model.NotificationMention, "mentioned you in a tweet", &ref); err != nil {
			return err
		}
	}
	return nil
}

func (f *NotificationFanout) notify(ctx context.Context, env event.Envelope, recipient, sender uint, typ model.NotificationType, content string, ref *uint) error {
	if recipient == sender {
		return nil
	}
	_, err := f.notifications.Notify(ctx, NotifyRequest{
		RecipientID: recipient,
		SenderID:    sender,
		Type:        typ,
		Content:     content,
		ReferenceID: ref,
		EventID:     fmt.Sprintf("%s:%s:%d", env.ID, typ, recipient),
	})
	return err
}
