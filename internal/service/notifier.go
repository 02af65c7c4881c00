package service

import (
	"context"

	"go.uber.org/zap"
)

// notifier 尽力而为的通知出口：投递失败只记日志，不影响已提交的业务写入
type notifier struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func newNotifier(d Dispatcher, logger *zap.Logger) *notifier {
	return &notifier{dispatcher: d, logger: logger}
}

// send 逐条投递；UserID 为空的通知直接跳过
func (n *notifier) send(ctx context.Context, notices ...Notice) {
	if n == nil || n.dispatcher == nil {
		return
	}
	for _, notice := range notices {
		if notice.UserID == "" {
			continue
		}
		if err := n.dispatcher.DispatchNotification(ctx, notice); err != nil {
			n.logger.Warn("通知投递失败",
				zap.String("failure", "notification"),
				zap.String("user_id", notice.UserID),
				zap.String("type", notice.Type),
				zap.Error(err),
			)
		}
	}
}
