package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// RescheduleLinkHandler 客户改期链接 HTTP 处理器
type RescheduleLinkHandler struct {
	linkSvc service.RescheduleLinkService
}

// NewRescheduleLinkHandler 创建 RescheduleLinkHandler
func NewRescheduleLinkHandler(linkSvc service.RescheduleLinkService) *RescheduleLinkHandler {
	return &RescheduleLinkHandler{linkSvc: linkSvc}
}

// Send 生成并发送改期链接
// POST /api/v1/appointments/:id/reschedule-link
func (h *RescheduleLinkHandler) Send(c *gin.Context) {
	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.linkSvc.Send(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}

	response.OK(c, result)
}

// Verify 客户打开链接时校验令牌（无需登录）
// GET /api/v1/reschedule/:id?token=xxx
func (h *RescheduleLinkHandler) Verify(c *gin.Context) {
	var req dto.VerifyRescheduleLinkRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 28001, "缺少 token")
		return
	}

	result, err := h.linkSvc.Verify(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}

	response.OK(c, result)
}

// Redeem 客户提交新的上门时间（无需登录）
// POST /api/v1/reschedule/:id
func (h *RescheduleLinkHandler) Redeem(c *gin.Context) {
	var req dto.RedeemRescheduleLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 28001, "参数校验失败")
		return
	}

	result, err := h.linkSvc.Redeem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *RescheduleLinkHandler) handleLinkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRescheduleLinkInvalid):
		response.Error(c, http.StatusGone, 28101, "改期链接无效或已过期")
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 28102, "预约不存在")
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 28103, "项目不存在")
	case errors.Is(err, service.ErrAppointmentClosed):
		response.BadRequest(c, 28104, "预约已结束，不能改期")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 28105, "日期或时间格式无效")
	case errors.Is(err, service.ErrAppointmentLocked):
		response.BadRequest(c, 28106, "预约已开始或已完成，不能改期")
	case errors.Is(err, service.ErrProjectTerminal):
		response.BadRequest(c, 28107, "项目已完成或已取消")
	case errors.Is(err, service.ErrReassignmentInProgress):
		response.Conflict(c, 28108, "该项目正在改派，请稍后重试")
	default:
		handleCommonError(c, err)
	}
}
