package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/mailer"
)

// Recorder 站内通知落库
type Recorder interface {
	Record(ctx context.Context, n service.Notice) error
}

// Sender 邮件发送
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Worker 任务消费者
type Worker struct {
	inbox  Recorder
	mail   Sender
	logger *zap.Logger
}

// NewWorker 创建消费者
func NewWorker(inbox Recorder, mail Sender, logger *zap.Logger) *Worker {
	return &Worker{inbox: inbox, mail: mail, logger: logger}
}

// Mux 注册全部任务处理器
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationDeliver, w.HandleNotification)
	mux.HandleFunc(TypeRescheduleEmail, w.HandleRescheduleEmail)
	return mux
}

// NewServer 创建 asynq 消费端，日志接入 zap
func NewServer(cfg *config.Config, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(RedisOpt(&cfg.Redis), asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues:      cfg.Queue.Queues,
		Logger:      logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("任务处理失败",
				zap.String("type", t.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})
}

// HandleNotification 通知写入收件箱
func (w *Worker) HandleNotification(ctx context.Context, t *asynq.Task) error {
	var p NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("通知任务载荷无效: %v: %w", err, asynq.SkipRetry)
	}

	err := w.inbox.Record(ctx, service.Notice{
		UserID:  p.UserID,
		Type:    p.Type,
		Title:   p.Title,
		Message: p.Message,
		Link:    p.Link,
	})
	if errors.Is(err, service.ErrInvalidNotice) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// HandleRescheduleEmail 发送改期链接邮件
func (w *Worker) HandleRescheduleEmail(ctx context.Context, t *asynq.Task) error {
	var p RescheduleEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("邮件任务载荷无效: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" || p.Link == "" {
		return fmt.Errorf("邮件任务缺少收件人或链接: %w", asynq.SkipRetry)
	}

	err := w.mail.Send(ctx, mailer.Message{
		To:      p.To,
		Subject: fmt.Sprintf("请为「%s」选择新的上门时间", p.ProjectName),
		Body:    mailer.RescheduleBody(p.ClientName, p.ProjectName, p.Link, p.ExpiresAt),
	})
	if errors.Is(err, mailer.ErrNotConfigured) {
		w.logger.Warn("邮件服务未配置，丢弃改期邮件", zap.String("appointment_id", p.AppointmentID))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
