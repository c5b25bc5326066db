package model

import "time"

// ContentType 可被检索的内容类型
type ContentType string

const (
	ContentTweet   ContentType = "tweet"
	ContentProfile ContentType = "profile"
)

func (t ContentType) Valid() bool {
	return t == ContentTweet || t == ContentProfile
}

// SearchDocument 检索索引中的反范式记录，(content_type, content_id) 唯一
type SearchDocument struct {
	ID              uint        `json:"-" gorm:"primaryKey"`
	ContentType     ContentType `json:"content_type" gorm:"type:varchar(16);not null;uniqueIndex:ux_search_content,priority:1;index:idx_search_type_score,priority:1"`
	ContentID       uint        `json:"content_id" gorm:"not null;uniqueIndex:ux_search_content,priority:2"`
	Text            string      `json:"text" gorm:"type:text;not null"`
	OwnerID         uint        `json:"owner_id" gorm:"not null;index"`
	EngagementScore float64     `json:"engagement_score" gorm:"not null;default:0;index:idx_search_type_score,priority:2"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (SearchDocument) TableName() string { return "search_documents" }
