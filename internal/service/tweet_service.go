package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/event"
	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/search"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

type CreateTweetRequest struct {
	Content   string `json:"content" binding:"required"`
	ReplyToID *uint  `json:"reply_to_id"`
}

// TweetView 推文及点赞信息
type TweetView struct {
	*model.Tweet
	LikesCount int64 `json:"likes_count"`
	IsLiked    bool  `json:"is_liked"`
}

// TweetService 推文与点赞。所有写操作与对应的 outbox 事件在同一事务内落地
type TweetService interface {
	Publish(ctx context.Context, authorID uint, req CreateTweetRequest) (*TweetView, error)
	Get(ctx context.Context, id, viewerID uint) (*TweetView, error)
	Timeline(ctx context.Context, viewerID uint, page, perPage int) ([]TweetView, search.PageInfo, error)
	Delete(ctx context.Context, id, requesterID uint) error
	// Like 重复点赞返回 ErrAlreadyLiked；成功时返回最新点赞数
	Like(ctx context.Context, userID, tweetID uint) (int64, error)
	// Unlike 本来没有点赞时 removed=false
	Unlike(ctx context.Context, userID, tweetID uint) (removed bool, likes int64, err error)
}

type tweetService struct {
	db          *gorm.DB
	tweets      repository.TweetRepository
	likes       repository.LikeRepository
	outbox      repository.OutboxRepository
	maxPageSize int
}

func NewTweetService(db *gorm.DB, tweets repository.TweetRepository, likes repository.LikeRepository, outbox repository.OutboxRepository, maxPageSize int) TweetService {
	return &tweetService{db: db, tweets: tweets, likes: likes, outbox: outbox, maxPageSize: maxPageSize}
}

// ExtractMentions 返回去重后的 @用户名，保持出现顺序
func ExtractMentions(content string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Publish 在一个事务内落地推文与 tweet.created 事件
func (s *tweetService) Publish(ctx context.Context, authorID uint, req CreateTweetRequest) (*TweetView, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalidf("content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxTweetLength {
		return nil, invalidf("content exceeds %d characters", model.MaxTweetLength)
	}

	tweet := &model.Tweet{UserID: authorID, Content: content, ReplyToID: req.ReplyToID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tweets := s.tweets.WithTx(tx)
		payload := event.TweetPayload{OwnerID: authorID, Content: content, Mentions: ExtractMentions(content)}
		if req.ReplyToID != nil {
			parent, err := tweets.GetByID(ctx, *req.ReplyToID)
			if err != nil {
				return err
			}
			payload.ReplyToID = &parent.ID
			payload.ReplyToOwnerID = &parent.UserID
		}
		if err := tweets.Create(ctx, tweet); err != nil {
			return err
		}
		payload.TweetID = tweet.ID
		payload.CreatedAt = tweet.CreatedAt
		_, err := s.outbox.WithTx(tx).Append(ctx, string(event.TweetCreated), tweet.ID, payload)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("reply target not found")
		}
		return nil, storeErr(err, "tweet")
	}
	return &TweetView{Tweet: tweet}, nil
}

func (s *tweetService) Get(ctx context.Context, id, viewerID uint) (*TweetView, error) {
	t, err := s.tweets.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "tweet")
	}
	views, err := s.decorate(ctx, []*model.Tweet{t}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *tweetService) Timeline(ctx context.Context, viewerID uint, page, perPage int) ([]TweetView, search.PageInfo, error) {
	size, err := clampPage(page, perPage, s.maxPageSize)
	if err != nil {
		return nil, search.PageInfo{}, err
	}
	total, err := s.tweets.Count(ctx)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "tweets")
	}
	offset, ok := search.Offset(page, size, int(total))
	if !ok {
		return []TweetView{}, pageInfo(total, page, size), nil
	}
	list, err := s.tweets.ListTimeline(ctx, offset, size)
	if err != nil {
		return nil, search.PageInfo{}, storeErr(err, "tweets")
	}
	views, err := s.decorate(ctx, list, viewerID)
	if err != nil {
		return nil, search.PageInfo{}, err
	}
	return views, pageInfo(total, page, size), nil
}

// decorate 批量补点赞数与当前用户是否点过赞；viewerID 为 0 表示匿名
func (s *tweetService) decorate(ctx context.Context, list []*model.Tweet, viewerID uint) ([]TweetView, error) {
	ids := make([]uint, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	counts, err := s.likes.CountByTweets(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "likes")
	}
	liked := map[uint]bool{}
	if viewerID != 0 {
		if liked, err = s.likes.LikedByUser(ctx, viewerID, ids); err != nil {
			return nil, storeErr(err, "likes")
		}
	}
	views := make([]TweetView, len(list))
	for i, t := range list {
		views[i] = TweetView{Tweet: t, LikesCount: counts[t.ID], IsLiked: liked[t.ID]}
	}
	return views, nil
}

func (s *tweetService) Delete(ctx context.Context, id, requesterID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tweets := s.tweets.WithTx(tx)
		t, err := tweets.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.UserID != requesterID {
			return ErrForbidden
		}
		if err := s.likes.WithTx(tx).DeleteByTweet(ctx, id); err != nil {
			return err
		}
		if err := tweets.Delete(ctx, id); err != nil {
			return err
		}
		_, err = s.outbox.WithTx(tx).Append(ctx, string(event.TweetDeleted), id, event.TweetPayload{
			TweetID:   id,
			OwnerID:   t.UserID,
			CreatedAt: t.CreatedAt,
		})
		return err
	})
	if errors.Is(err, ErrForbidden) {
		return err
	}
	return storeErr(err, "tweet")
}

func (s *tweetService) Like(ctx context.Context, userID, tweetID uint) (int64, error) {
	var likes int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁推文行，并发点赞读到的计数才包含彼此已提交的写入
		t, err := s.tweets.WithTx(tx).GetForUpdate(ctx, tweetID)
		if err != nil {
			return err
		}
		likeRepo := s.likes.WithTx(tx)
		created, err := likeRepo.Create(ctx, userID, tweetID)
		if err != nil {
			return err
		}
		if !created {
			return ErrAlreadyLiked
		}
		if likes, err = likeRepo.CountByTweet(ctx, tweetID); err != nil {
			return err
		}
		_, err = s.outbox.WithTx(tx).Append(ctx, string(event.TweetLiked), tweetID, likePayload(t, userID, likes))
		return err
	})
	if errors.Is(err, ErrAlreadyLiked) {
		return 0, err
	}
	if err != nil {
		return 0, storeErr(err, "tweet")
	}
	return likes, nil
}

func (s *tweetService) Unlike(ctx context.Context, userID, tweetID uint) (bool, int64, error) {
	var (
		removed bool
		likes   int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁推文行，并发点赞读到的计数才包含彼此已提交的写入
		t, err := s.tweets.WithTx(tx).GetForUpdate(ctx, tweetID)
		if err != nil {
			return err
		}
		likeRepo := s.likes.WithTx(tx)
		if removed, err = likeRepo.Delete(ctx, userID, tweetID); err != nil {
			return err
		}
		if likes, err = likeRepo.CountByTweet(ctx, tweetID); err != nil {
			return err
		}
		if !removed {
			return nil
		}
		_, err = s.outbox.WithTx(tx).Append(ctx, string(event.TweetUnliked), tweetID, likePayload(t, userID, likes))
		return err
	})
	if err != nil {
		return false, 0, storeErr(err, "tweet")
	}
	return removed, likes, nil
}

func likePayload(t *model.Tweet, likerID uint, likes int64) event.LikePayload {
	return event.LikePayload{
		TweetID:    t.ID,
		OwnerID:    t.UserID,
		LikerID:    likerID,
		Content:    t.Content,
		CreatedAt:  t.CreatedAt,
		LikesCount: likes,
	}
}
