package model

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxStatus outbox 事件状态
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDone       OutboxStatus = "done"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxEvent 事件外发盒：与源数据在同一事务内写入，由 relay 异步投递
type OutboxEvent struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	EventType   string         `gorm:"type:varchar(64);not null;index"`
	AggregateID uint           `gorm:"not null;index"`
	Payload     datatypes.JSON `gorm:"not null"`
	Status      OutboxStatus   `gorm:"type:varchar(16);not null;index:idx_outbox_status_created,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   string         `gorm:"type:text"`
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"index:idx_outbox_status_created,priority:2"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
