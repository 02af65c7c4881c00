package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/api/handler"
	"fieldops/backend/internal/api/middleware"
	"fieldops/backend/internal/api/router"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/service"
	"fieldops/backend/internal/task"
	"fieldops/backend/pkg/database"
	"fieldops/backend/pkg/jwt"
	applogger "fieldops/backend/pkg/logger"
	"fieldops/backend/pkg/mailer"
	"fieldops/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log, "fieldops-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Scheduling.Timezone),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	// 接口变量保持字面 nil，避免带类型的 nil 指针
	var (
		locker  service.Locker
		limiter middleware.WindowLimiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，改派锁与分布式限流将不可用", zap.Error(err))
		rdb = nil
	} else {
		locker = rdb
		limiter = rdb
	}

	// 5. 异步任务生产者（Redis 恢复后自动可用）
	queue := task.NewClient(cfg, logger)

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, queue, locker, logger)
	h := handler.NewHandler(svc)

	// 8. 进程内消费者（可由 queue.run_worker 关闭，改用 cmd/worker 独立部署）
	var worker interface{ Shutdown() }
	if cfg.Queue.RunWorker {
		srv := task.NewServer(cfg, logger)
		w := task.NewWorker(svc.Notification, mailer.New(&cfg.Mail, logger), logger)
		if err := srv.Start(w.Mux()); err != nil {
			logger.Warn("任务消费者启动失败，通知将留在队列中", zap.Error(err))
		} else {
			worker = srv
			logger.Info("任务消费者已启动", zap.Int("concurrency", cfg.Queue.Concurrency))
		}
	}

	// 9. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, limiter, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的任务完成
	if worker != nil {
		worker.Shutdown()
	}
	if err := queue.Close(); err != nil {
		logger.Warn("关闭任务队列连接失败", zap.Error(err))
	}

	// 关闭数据库连接
	if sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
