package model

import "time"

// NotificationType 通知类型
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
	NotificationReply   NotificationType = "reply"
)

// MaxNotificationContent 通知内容最大长度
const MaxNotificationContent = 500

// Valid 是否为已知类型
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationFollow, NotificationMention, NotificationReply:
		return true
	}
	return false
}

// Notification 通知；创建后只有 read 可变，且只有接收者可以修改
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	RecipientID uint             `json:"recipient_id" gorm:"not null;index:idx_notif_recipient_read"`
	SenderID    uint             `json:"sender_id" gorm:"not null"`
	Type        NotificationType `json:"type" gorm:"type:varchar(16);not null"`
	Content     string           `json:"content" gorm:"type:varchar(500);not null"`
	ReferenceID *uint            `json:"reference_id"`
	Read        bool             `json:"read" gorm:"column:read;not null;default:false;index:idx_notif_recipient_read"`
	// EventID 来源事件 + 接收者；同一事件重复投递只落一行
	EventID   *string   `json:"-" gorm:"type:varchar(96);uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Notification) TableName() string { return "notifications" }
