package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/service"
	"fieldops/backend/internal/task"
	"fieldops/backend/pkg/database"
	applogger "fieldops/backend/pkg/logger"
	"fieldops/backend/pkg/mailer"
)

// 独立部署的任务消费者：通知落库与改期邮件
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log, "fieldops-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	repo := repository.NewRepository(db)
	inbox := service.NewNotificationService(repo, logger)
	w := task.NewWorker(inbox, mailer.New(&cfg.Mail, logger), logger)

	srv := task.NewServer(cfg, logger)
	if err := srv.Start(w.Mux()); err != nil {
		logger.Fatal("任务消费者启动失败", zap.Error(err))
	}
	logger.Info("任务消费者已启动",
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.Any("queues", cfg.Queue.Queues),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，等待进行中的任务完成...", zap.String("signal", sig.String()))
	srv.Shutdown()
	logger.Info("任务消费者已关闭")
}
