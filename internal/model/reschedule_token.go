package model

import (
	"time"

	"gorm.io/gorm"
)

// RescheduleToken 客户自助改期链接令牌 — 对应 reschedule_tokens
// 只保存 bcrypt 哈希，明文令牌仅出现在发给客户的链接里
type RescheduleToken struct {
	TokenID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"token_id"`
	AppointmentID string     `gorm:"type:uuid;not null;index"                       json:"appointment_id"`
	TokenHash     string     `gorm:"type:varchar(255);not null"                     json:"-"`
	ExpiresAt     time.Time  `gorm:"not null"                                       json:"expires_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedBy     string     `gorm:"type:uuid;not null"                             json:"created_by"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (RescheduleToken) TableName() string { return "reschedule_tokens" }

// BeforeCreate 补齐主键
func (t *RescheduleToken) BeforeCreate(_ *gorm.DB) error {
	newID(&t.TokenID)
	return nil
}
