package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/repository"
)

// ── 外部协作方 ──

// Notice 站内通知
type Notice struct {
	UserID  string
	Type    string
	Title   string
	Message string
	Link    string
}

// 通知类型
const (
	NoticeAssignment   = "assignment"
	NoticeReassignment = "reassignment"
	NoticeStatusChange = "status_change"
	NoticeEscalation   = "escalation"
)

// RescheduleEmail 客户改期链接邮件
type RescheduleEmail struct {
	To            string
	ClientName    string
	ProjectName   string
	AppointmentID string
	Link          string
	ExpiresAt     time.Time
}

// Dispatcher 异步投递通知与邮件；由任务队列实现
// 返回 error 仅表示入队失败，业务流程不因此回滚
type Dispatcher interface {
	DispatchNotification(ctx context.Context, n Notice) error
	DispatchRescheduleEmail(ctx context.Context, m RescheduleEmail) error
}

// Locker 分布式锁；由 Redis 实现，Redis 不可用时传 nil
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Availability   AvailabilityService
	Project        ProjectService
	Appointment    AppointmentService
	Reassignment   ReassignmentService
	Leave          LeaveService
	Technician     TechnicianService
	Export         ExportService
	RescheduleLink RescheduleLinkService
	Notification   NotificationService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	dispatcher Dispatcher,
	locker Locker,
	logger *zap.Logger,
) *Service {
	notify := newNotifier(dispatcher, logger)
	reassign := newReassignmentService(&cfg.Scheduling, repo, locker, notify, logger)

	return &Service{
		Availability:   NewAvailabilityService(repo, logger),
		Project:        NewProjectService(repo, notify, logger),
		Appointment:    NewAppointmentService(repo, logger),
		Reassignment:   reassign,
		Leave:          NewLeaveService(&cfg.Scheduling, repo, reassign, logger),
		Technician:     NewTechnicianService(&cfg.Scheduling, repo, reassign, logger),
		Export:         NewExportService(repo, logger),
		RescheduleLink: NewRescheduleLinkService(cfg, repo, dispatcher, reassign, logger),
		Notification:   NewNotificationService(repo, logger),
	}
}
