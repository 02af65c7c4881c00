package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// AvailabilityHandler 可用性查询 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// FindCandidates 查询某日某时刻可接单的技术员
// GET /api/v1/availability/candidates?date=2025-03-17&time=10:00
func (h *AvailabilityHandler) FindCandidates(c *gin.Context) {
	var req dto.FindCandidatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	result, err := h.availabilitySvc.FindCandidates(c.Request.Context(), &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

// EvaluateTechnician 诊断技术员在某时刻为何不可用
// GET /api/v1/technicians/:id/availability?date=2025-03-17&time=10:00
func (h *AvailabilityHandler) EvaluateTechnician(c *gin.Context) {
	var req dto.EvaluateTechnicianRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	result, err := h.availabilitySvc.EvaluateTechnician(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTechnicianNotFound):
		response.NotFound(c, 21101, "技术员不存在")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 21102, "日期或时间格式无效")
	default:
		handleCommonError(c, err)
	}
}
