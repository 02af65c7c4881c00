package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// TechnicianHandler 技术员目录 HTTP 处理器
type TechnicianHandler struct {
	technicianSvc  service.TechnicianService
	appointmentSvc service.AppointmentService
}

// NewTechnicianHandler 创建 TechnicianHandler
func NewTechnicianHandler(technicianSvc service.TechnicianService, appointmentSvc service.AppointmentService) *TechnicianHandler {
	return &TechnicianHandler{technicianSvc: technicianSvc, appointmentSvc: appointmentSvc}
}

// List 技术员列表
// GET /api/v1/technicians?active_only=true
func (h *TechnicianHandler) List(c *gin.Context) {
	var req dto.ListTechniciansRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 26001, "参数校验失败")
		return
	}

	list, err := h.technicianSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleTechnicianError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get 技术员详情
// GET /api/v1/technicians/:id
func (h *TechnicianHandler) Get(c *gin.Context) {
	tech, err := h.technicianSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTechnicianError(c, err)
		return
	}

	response.OK(c, tech)
}

// UpdateWorkingHours 修改每周工作时间
// PUT /api/v1/technicians/:id/working-hours
func (h *TechnicianHandler) UpdateWorkingHours(c *gin.Context) {
	var req dto.UpdateWorkingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 26001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tech, err := h.technicianSvc.UpdateWorkingHours(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleTechnicianError(c, err)
		return
	}

	response.OK(c, tech)
}

// SetActive 启用/停用技术员
// PUT /api/v1/technicians/:id/active
func (h *TechnicianHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 26001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.technicianSvc.SetActive(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleTechnicianError(c, err)
		return
	}

	response.OK(c, result)
}

// ListAppointments 技术员在区间内的未结预约
// GET /api/v1/technicians/:id/appointments?from=2025-03-01&to=2025-03-31
func (h *TechnicianHandler) ListAppointments(c *gin.Context) {
	var req dto.DateRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 26001, "参数校验失败")
		return
	}

	list, err := h.appointmentSvc.ListByTechnician(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		handleAppointmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ExportCalendar 导出技术员日程
// GET /api/v1/technicians/:id/calendar.ics?from=2025-03-01&to=2025-03-31
func (h *TechnicianHandler) ExportCalendar(c *gin.Context) {
	var req dto.DateRangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 26001, "参数校验失败")
		return
	}

	content, filename, err := h.technicianSvc.ExportCalendar(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleTechnicianError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", content)
}

func (h *TechnicianHandler) handleTechnicianError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTechnicianNotFound):
		response.NotFound(c, 26101, "技术员不存在")
	case errors.Is(err, service.ErrInvalidWorkingHours):
		response.BadRequest(c, 26102, err.Error())
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 26103, "日期区间无效")
	case errors.Is(err, service.ErrDateRangeTooLarge):
		response.BadRequest(c, 26104, "日期区间不能超过 366 天")
	default:
		handleCommonError(c, err)
	}
}
