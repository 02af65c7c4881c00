package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Technician      TechnicianRepository
	Leave           LeaveRepository
	Appointment     AppointmentRepository
	Project         ProjectRepository
	Timeline        TimelineRepository
	Notification    NotificationRepository
	RescheduleToken RescheduleTokenRepository
	Tx              TxManager
}

// TxManager 事务入口：fn 收到的 Repository 绑定在同一个数据库事务上
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(tx *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Technician:      NewTechnicianRepo(db),
		Leave:           NewLeaveRepo(db),
		Appointment:     NewAppointmentRepo(db),
		Project:         NewProjectRepo(db),
		Timeline:        NewTimelineRepo(db),
		Notification:    NewNotificationRepo(db),
		RescheduleToken: NewRescheduleTokenRepo(db),
		Tx:              &gormTx{db: db},
	}
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) WithinTransaction(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
