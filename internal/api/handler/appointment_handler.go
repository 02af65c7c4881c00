package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/scheduling"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// AppointmentHandler 预约模块 HTTP 处理器
type AppointmentHandler struct {
	appointmentSvc service.AppointmentService
}

// NewAppointmentHandler 创建 AppointmentHandler
func NewAppointmentHandler(appointmentSvc service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointmentSvc: appointmentSvc}
}

// Create 为项目创建上门预约
// POST /api/v1/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 23001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	appt, err := h.appointmentSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleAppointmentError(c, err)
		return
	}

	response.Created(c, appt)
}

// Get 预约详情
// GET /api/v1/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.appointmentSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleAppointmentError(c, err)
		return
	}

	response.OK(c, appt)
}

// ChangeStatus 变更预约状态
// PUT /api/v1/appointments/:id/status
func (h *AppointmentHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 23001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	appt, err := h.appointmentSvc.ChangeStatus(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleAppointmentError(c, err)
		return
	}

	response.OK(c, appt)
}

func handleAppointmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 23101, "预约不存在")
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 23102, "项目不存在")
	case errors.Is(err, service.ErrTechnicianNotFound):
		response.NotFound(c, 23103, "技术员不存在")
	case errors.Is(err, service.ErrInvalidAppointmentStatus):
		response.BadRequest(c, 23104, "无效的预约状态")
	case errors.Is(err, scheduling.ErrInvalidTransition):
		response.BadRequest(c, 23105, err.Error())
	case errors.Is(err, service.ErrAppointmentExists):
		response.Conflict(c, 23106, "项目已有未结预约")
	case errors.Is(err, service.ErrTechnicianUnavailable):
		response.Conflict(c, 23107, "技术员当天不可用")
	case errors.Is(err, service.ErrProjectTerminal):
		response.BadRequest(c, 23108, "项目已完成或已取消")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 23109, "日期或时间格式无效")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 23110, "日期区间无效")
	default:
		handleCommonError(c, err)
	}
}
