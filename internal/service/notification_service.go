package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 通知模块业务错误 ──

var (
	ErrNotificationNotFound = errors.New("通知不存在")
	ErrInvalidNotice        = errors.New("通知缺少收件人或标题")
)

// NotificationService 站内通知业务接口
type NotificationService interface {
	// Record 持久化一条通知（由异步任务调用）
	Record(ctx context.Context, n Notice) error
	ListMine(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) Record(ctx context.Context, n Notice) error {
	if n.UserID == "" || n.Title == "" {
		return ErrInvalidNotice
	}
	row := &model.Notification{
		UserID:  n.UserID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
	}
	if n.Link != "" {
		link := n.Link
		row.Link = &link
	}
	if err := s.repo.Notification.Create(ctx, row); err != nil {
		s.logger.Error("保存通知失败", zap.String("user_id", n.UserID), zap.Error(err))
		return pkgerrors.NewDataAccessError("notification.create", err)
	}
	return nil
}

func (s *notificationService) ListMine(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	rows, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, pkgerrors.NewDataAccessError("notification.list", err)
	}
	list := make([]dto.NotificationResponse, 0, len(rows))
	for i := range rows {
		list = append(list, toNotificationResponse(&rows[i]))
	}
	return list, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.Notification.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return pkgerrors.NewDataAccessError("notification.read", err)
	}
	return nil
}
