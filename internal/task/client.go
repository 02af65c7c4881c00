package task

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/service"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client 任务生产者，实现 service.Dispatcher
type Client struct {
	enq      enqueuer
	maxRetry int
	logger   *zap.Logger
}

var _ service.Dispatcher = (*Client)(nil)

// RedisOpt 由配置构造 asynq 的 Redis 连接参数
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// NewClient 创建任务生产者
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		enq:      asynq.NewClient(RedisOpt(&cfg.Redis)),
		maxRetry: cfg.Queue.MaxRetry,
		logger:   logger,
	}
}

// DispatchNotification 投递站内通知
func (c *Client) DispatchNotification(ctx context.Context, n service.Notice) error {
	t, err := NewNotificationTask(NotificationPayload{
		UserID:  n.UserID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
		Link:    n.Link,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, t, QueueNotifications)
}

// DispatchRescheduleEmail 投递改期链接邮件
func (c *Client) DispatchRescheduleEmail(ctx context.Context, m service.RescheduleEmail) error {
	t, err := NewRescheduleEmailTask(RescheduleEmailPayload{
		To:            m.To,
		ClientName:    m.ClientName,
		ProjectName:   m.ProjectName,
		AppointmentID: m.AppointmentID,
		Link:          m.Link,
		ExpiresAt:     m.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, t, QueueMail)
}

func (c *Client) enqueue(ctx context.Context, t *asynq.Task, queue string) error {
	info, err := c.enq.EnqueueContext(ctx, t, asynq.Queue(queue), asynq.MaxRetry(c.maxRetry), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("任务入队失败 (%s): %w", t.Type(), err)
	}
	c.logger.Debug("任务已入队", zap.String("type", t.Type()), zap.String("id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.enq.Close()
}
