package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/chirper/internal/model"
)

// OutboxRepository 事件外发盒。Append 必须在业务事务内调用
type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	Append(ctx context.Context, eventType string, aggregateID uint, payload interface{}) (*model.OutboxEvent, error)
	// Claim 领取待投递事件：pending 或租约过期的 processing
	Claim(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxEvent, error)
	MarkDone(ctx context.Context, id string) error
	// Release 放回 pending；countAttempt 为 true 时累加失败次数
	Release(ctx context.Context, id string, countAttempt bool, lastErr string) error
	MarkFailed(ctx context.Context, id string, lastErr string) error
	// Purge 删除 before 之前完成的事件
	Purge(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository { return &outboxRepository{db: tx} }

func (r *outboxRepository) Append(ctx context.Context, eventType string, aggregateID uint, payload interface{}) (*model.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt := &model.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(raw),
		Status:      model.OutboxPending,
		CreatedAt:   time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(evt).Error; err != nil {
		return nil, err
	}
	return evt, nil
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxEvent, error) {
	var batch []model.OutboxEvent
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? OR (status = ? AND claimed_at < ?)",
			model.OutboxPending, model.OutboxProcessing, now.Add(-lease)).
			Order("created_at ASC").Order("id ASC").
			Limit(limit)
		// 多个 relay 实例并发领取时互相跳过已锁行；sqlite 单写者无需加锁
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = batch[i].ID
			batch[i].Status = model.OutboxProcessing
			batch[i].ClaimedAt = &now
		}
		return tx.Model(&model.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": model.OutboxProcessing, "claimed_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.OutboxDone, "processed_at": now, "last_error": ""}).Error
}

func (r *outboxRepository) Release(ctx context.Context, id string, countAttempt bool, lastErr string) error {
	updates := map[string]interface{}{"status": model.OutboxPending, "claimed_at": nil}
	if countAttempt {
		updates["attempts"] = gorm.Expr("attempts + 1")
		updates["last_error"] = lastErr
	}
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, lastErr string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxFailed,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   lastErr,
			"processed_at": now,
		}).Error
}

func (r *outboxRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", model.OutboxDone, before).
		Delete(&model.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("status = ?", status).Count(&cnt).Error
	return cnt, err
}
