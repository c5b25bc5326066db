package model

import "time"

// User 用户资料
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(80);uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(120);not null"`
	Bio       string    `json:"bio" gorm:"type:varchar(160)"`
	AvatarURL string    `json:"avatar_url" gorm:"type:varchar(255)"`
	Location  string    `json:"location" gorm:"type:varchar(100)"`
	Website   string    `json:"website" gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
