package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/chirper/internal/model"
)

type NotificationRepository interface {
	// Create 带 EventID 的重复事件不会产生新行，此时 created=false
	Create(ctx context.Context, n *model.Notification) (created bool, err error)
	GetByID(ctx context.Context, id uint) (*model.Notification, error)
	GetByEventID(ctx context.Context, eventID string) (*model.Notification, error)
	List(ctx context.Context, recipientID uint, unreadOnly bool, offset, limit int) ([]*model.Notification, error)
	Count(ctx context.Context, recipientID uint, unreadOnly bool) (int64, error)
	// Owners 返回 id -> recipient_id，不存在的 id 不出现
	Owners(ctx context.Context, ids []uint) (map[uint]uint, error)
	// MarkRead ids 为空时标记该接收者全部未读
	MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) GetByEventID(ctx context.Context, eventID string) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) scope(ctx context.Context, recipientID uint, unreadOnly bool) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	return q
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint, unreadOnly bool, offset, limit int) ([]*model.Notification, error) {
	var res []*model.Notification
	err := r.scope(ctx, recipientID, unreadOnly).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *notificationRepository) Count(ctx context.Context, recipientID uint, unreadOnly bool) (int64, error) {
	var cnt int64
	err := r.scope(ctx, recipientID, unreadOnly).Count(&cnt).Error
	return cnt, err
}

func (r *notificationRepository) Owners(ctx context.Context, ids []uint) (map[uint]uint, error) {
	out := make(map[uint]uint, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.Notification
	if err := r.db.WithContext(ctx).
		Select("id", "recipient_id").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, n := range rows {
		out[n.ID] = n.RecipientID
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	q := r.scope(ctx, recipientID, true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Notification{}, id).Error
}
