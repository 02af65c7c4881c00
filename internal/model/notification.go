package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification 站内通知表 — 对应 notifications
// 由异步任务 worker 写入，投递失败不影响业务主流程
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"` // assignment | reassignment | status_change | escalation
	Title          string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Message        string     `gorm:"type:text;not null"                             json:"message"`
	Link           *string    `gorm:"type:varchar(500)"                              json:"link,omitempty"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// BeforeCreate 补齐主键
func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	newID(&n.NotificationID)
	return nil
}
