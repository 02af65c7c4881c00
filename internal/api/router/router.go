package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fieldops/backend/config"
	"fieldops/backend/internal/api/handler"
	"fieldops/backend/internal/api/middleware"
	"fieldops/backend/internal/dto"
	"fieldops/backend/pkg/jwt"
)

// 请求体上限 1MB
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时公开接口使用进程内限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.WindowLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	dto.RegisterValidators()

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	admin := middleware.RoleAuth(jwt.RoleAdmin)
	staff := middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleTechnician)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 客户改期链接（无需登录，凭一次性令牌）
		public := v1.Group("/reschedule")
		public.Use(middleware.RateLimit(limiter, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger))
		{
			public.GET("/:id", h.RescheduleLink.Verify)
			public.POST("/:id", h.RescheduleLink.Redeem)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			// 可用性
			authorized.GET("/availability/candidates", admin, h.Availability.FindCandidates)

			// 技术员
			technicians := authorized.Group("/technicians")
			{
				technicians.GET("", staff, h.Technician.List)
				technicians.GET("/:id", staff, h.Technician.Get)
				technicians.PUT("/:id/working-hours", admin, h.Technician.UpdateWorkingHours)
				technicians.PUT("/:id/active", admin, h.Technician.SetActive)
				technicians.GET("/:id/availability", admin, h.Availability.EvaluateTechnician)
				technicians.GET("/:id/appointments", staff, h.Technician.ListAppointments)
				technicians.GET("/:id/calendar.ics", staff, h.Technician.ExportCalendar)
				technicians.GET("/:id/leaves", staff, h.Leave.ListByTechnician)
			}

			// 项目
			projects := authorized.Group("/projects")
			{
				projects.GET("/status-counts", admin, h.Project.CountByStatus)
				projects.GET("/urgent", admin, h.Project.ListUrgent)
				projects.GET("/:id", staff, h.Project.GetProject)
				projects.GET("/:id/timeline", staff, h.Project.ListTimeline)
				projects.PUT("/:id/technicians", admin, h.Project.AssignTechnicians)
				projects.PUT("/:id/status", admin, h.Project.ChangeStatus)
				projects.PUT("/:id/progress", staff, h.Project.UpdateProgress)
				projects.POST("/:id/reassign", admin, h.Project.Reassign)
				projects.POST("/:id/reconcile", admin, h.Project.ReconcileAssignment)
			}

			// 预约
			appointments := authorized.Group("/appointments")
			{
				appointments.POST("", admin, h.Appointment.Create)
				appointments.GET("/:id", staff, h.Appointment.Get)
				appointments.PUT("/:id/status", staff, h.Appointment.ChangeStatus)
				appointments.POST("/:id/reschedule-link", admin, h.RescheduleLink.Send)
			}

			// 请假
			leaves := authorized.Group("/leaves")
			{
				leaves.POST("", staff, h.Leave.Create)
				leaves.POST("/:id/approve", admin, h.Leave.Approve)
				leaves.POST("/:id/reject", admin, h.Leave.Reject)
				leaves.POST("/:id/cancel", staff, h.Leave.Cancel)
			}

			// 站内通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListMine)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/schedule", admin, h.Export.ExportSchedule)
			}
		}
	}

	return r
}
