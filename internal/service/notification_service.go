package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/d60-Lab/chirper/internal/model"
	"github.com/d60-Lab/chirper/internal/repository"
	"github.com/d60-Lab/chirper/internal/search"
)

type NotifyRequest struct {
	RecipientID uint                   `json:"recipient_id" binding:"required"`
	SenderID    uint                   `json:"sender_id" binding:"required"`
	Type        model.NotificationType `json:"type" binding:"required,notification_type"`
	Content     string                 `json:"content" binding:"required,max=500"`
	ReferenceID *uint                  `json:"reference_id"`
	// EventID 由事件消费者填写，用于吸收重复投递
	EventID string `json:"-"`
}

// NotificationPage 通知列表
type NotificationPage struct {
	Notifications []*model.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
	search.PageInfo
}

type NotificationService interface {
	Notify(ctx context.Context, req NotifyRequest) (*model.Notification, error)
	List(ctx context.Context, recipientID uint, page, perPage int, unreadOnly bool) (*NotificationPage, error)
	// MarkRead ids 为空时标记全部未读；任一 id 属于他人时返回 ErrForbidden 且不做任何修改
	MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, recipientID, id uint) error
}

type notificationService struct {
	repo        repository.NotificationRepository
	maxPageSize int
}

func NewNotificationService(repo repository.NotificationRepository, maxPageSize int) NotificationService {
	return &notificationService{repo: repo, maxPageSize: maxPageSize}
}

func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) (*model.Notification, error) {
	if req.RecipientID == 0 || req.SenderID == 0 {
		return nil, invalidf("recipient_id and sender_id are required")
	}
	if !req.Type.Valid() {
		return nil, invalidf("type must be one of like, follow, mention, reply")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalidf("content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxNotificationContent {
		return nil, invalidf("content exceeds %d characters", model.MaxNotificationContent)
	}

	n := &model.Notification{
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        req.Type,
		Content:     content,
		ReferenceID: req.ReferenceID,
	}
	if req.EventID != "" {
		eventID := req.EventID
		n.EventID = &eventID
	}
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, storeErr(err, "notification")
	}
	if !created {
		existing, err := s.repo.GetByEventID(ctx, req.EventID)
		if err != nil {
			return nil, storeErr(err, "notification")
		}
		return existing, nil
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, recipientID uint, page, perPage int, unreadOnly bool) (*NotificationPage, error) {
	size, err := clampPage(page, perPage, s.maxPageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, storeErr(err, "notifications")
	}
	list := []*model.Notification{}
	if offset, ok := search.Offset(page, size, int(total)); ok {
		if list, err = s.repo.List(ctx, recipientID, unreadOnly, offset, size); err != nil {
			return nil, storeErr(err, "notifications")
		}
	}
	unread, err := s.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: list, UnreadCount: unread, PageInfo: pageInfo(total, page, size)}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	ids = dedupe(ids)
	if len(ids) > 0 {
		owners, err := s.repo.Owners(ctx, ids)
		if err != nil {
			return 0, storeErr(err, "notifications")
		}
		for _, owner := range owners {
			if owner != recipientID {
				return 0, ErrForbidden
			}
		}
	}
	n, err := s.repo.MarkRead(ctx, recipientID, ids)
	if err != nil {
		return 0, storeErr(err, "notifications")
	}
	return n, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	n, err := s.repo.Count(ctx, recipientID, true)
	if err != nil {
		return 0, storeErr(err, "notifications")
	}
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, recipientID, id uint) error {
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundf("notification %d not found", id)
	}
	if err != nil {
		return storeErr(err, "notification")
	}
	if n.RecipientID != recipientID {
		return ErrForbidden
	}
	return storeErr(s.repo.Delete(ctx, id), "notification")
}

func dedupe(ids []uint) []uint {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
