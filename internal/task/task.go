package task

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型
const (
	TypeNotificationDeliver = "notification:deliver"
	TypeRescheduleEmail     = "mail:reschedule_link"
)

// 队列名，与 queue.queues 配置对应
const (
	QueueNotifications = "notifications"
	QueueMail          = "mail"
)

// NotificationPayload 站内通知任务
type NotificationPayload struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// RescheduleEmailPayload 改期链接邮件任务
type RescheduleEmailPayload struct {
	To            string    `json:"to"`
	ClientName    string    `json:"client_name"`
	ProjectName   string    `json:"project_name"`
	AppointmentID string    `json:"appointment_id"`
	Link          string    `json:"link"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewNotificationTask 构造站内通知任务
func NewNotificationTask(p NotificationPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDeliver, b), nil
}

// NewRescheduleEmailTask 构造改期邮件任务
func NewRescheduleEmailTask(p RescheduleEmailPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRescheduleEmail, b), nil
}
