package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// LeaveHandler 请假模块 HTTP 处理器
type LeaveHandler struct {
	leaveSvc service.LeaveService
}

// NewLeaveHandler 创建 LeaveHandler
func NewLeaveHandler(leaveSvc service.LeaveService) *LeaveHandler {
	return &LeaveHandler{leaveSvc: leaveSvc}
}

// Create 提交请假
// POST /api/v1/leaves
func (h *LeaveHandler) Create(c *gin.Context) {
	var req dto.CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 25001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.Created(c, leave)
}

// Approve 批准请假并自动改派请假期间的预约
// POST /api/v1/leaves/:id/approve
func (h *LeaveHandler) Approve(c *gin.Context) {
	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.leaveSvc.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, result)
}

// Reject 驳回请假
// POST /api/v1/leaves/:id/reject
func (h *LeaveHandler) Reject(c *gin.Context) {
	var req dto.RejectLeaveRequest
	// 驳回理由可选，允许空请求体
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 25001, "参数校验失败")
			return
		}
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Reject(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, leave)
}

// Cancel 取消请假
// POST /api/v1/leaves/:id/cancel
func (h *LeaveHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	leave, err := h.leaveSvc.Cancel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, leave)
}

// ListByTechnician 技术员请假记录
// GET /api/v1/technicians/:id/leaves
func (h *LeaveHandler) ListByTechnician(c *gin.Context) {
	leaves, err := h.leaveSvc.ListByTechnician(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleLeaveError(c, err)
		return
	}

	response.OK(c, gin.H{"list": leaves})
}

func (h *LeaveHandler) handleLeaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrLeaveNotFound):
		response.NotFound(c, 25101, "请假记录不存在")
	case errors.Is(err, service.ErrTechnicianNotFound):
		response.NotFound(c, 25102, "技术员不存在")
	case errors.Is(err, service.ErrLeaveNotPending):
		response.BadRequest(c, 25103, "只能审批待审核的请假")
	case errors.Is(err, service.ErrLeaveNotCancellable):
		response.BadRequest(c, 25104, "只能取消待审核或已批准的请假")
	case errors.Is(err, service.ErrInvalidLeaveRange):
		response.BadRequest(c, 25105, "请假结束日期不能早于开始日期")
	case errors.Is(err, service.ErrInvalidLeaveType):
		response.BadRequest(c, 25106, "无效的请假类型")
	default:
		handleCommonError(c, err)
	}
}
