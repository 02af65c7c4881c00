package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/scheduling"
	"fieldops/backend/internal/service"
	"fieldops/backend/pkg/response"
)

// ProjectHandler 项目模块 HTTP 处理器（含改派）
type ProjectHandler struct {
	projectSvc  service.ProjectService
	reassignSvc service.ReassignmentService
}

// NewProjectHandler 创建 ProjectHandler
func NewProjectHandler(projectSvc service.ProjectService, reassignSvc service.ReassignmentService) *ProjectHandler {
	return &ProjectHandler{projectSvc: projectSvc, reassignSvc: reassignSvc}
}

// GetProject 获取项目详情
// GET /api/v1/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projectSvc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, project)
}

// ListTimeline 项目时间线（新的在前）
// GET /api/v1/projects/:id/timeline
func (h *ProjectHandler) ListTimeline(c *gin.Context) {
	entries, err := h.projectSvc.ListTimeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, gin.H{"list": entries})
}

// AssignTechnicians 指派技术员
// PUT /api/v1/projects/:id/technicians
func (h *ProjectHandler) AssignTechnicians(c *gin.Context) {
	var req dto.AssignTechniciansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 22001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	project, err := h.projectSvc.AssignTechnicians(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, project)
}

// ChangeStatus 变更项目状态
// PUT /api/v1/projects/:id/status
func (h *ProjectHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeProjectStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 22001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	project, err := h.projectSvc.ChangeStatus(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, project)
}

// UpdateProgress 更新安装进度
// PUT /api/v1/projects/:id/progress
func (h *ProjectHandler) UpdateProgress(c *gin.Context) {
	var req dto.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 22001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	project, err := h.projectSvc.UpdateProgress(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, project)
}

// CountByStatus 各状态项目数
// GET /api/v1/projects/status-counts
func (h *ProjectHandler) CountByStatus(c *gin.Context) {
	counts, err := h.projectSvc.CountByStatus(c.Request.Context())
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, gin.H{"list": counts})
}

// ListUrgent 待紧急改期的项目
// GET /api/v1/projects/urgent
func (h *ProjectHandler) ListUrgent(c *gin.Context) {
	projects, err := h.projectSvc.ListUrgent(c.Request.Context())
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, gin.H{"list": projects})
}

// ReconcileAssignment 以未结预约修复项目主技术员
// POST /api/v1/projects/:id/reconcile
func (h *ProjectHandler) ReconcileAssignment(c *gin.Context) {
	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	project, err := h.projectSvc.ReconcileAssignment(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	response.OK(c, project)
}

// Reassign 手动改派
// POST /api/v1/projects/:id/reassign
func (h *ProjectHandler) Reassign(c *gin.Context) {
	var req dto.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 24001, "参数校验失败")
		return
	}

	actor, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reassignSvc.Reassign(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		h.handleReassignError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ProjectHandler) handleProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 22101, "项目不存在")
	case errors.Is(err, service.ErrInvalidProjectStatus):
		response.BadRequest(c, 22102, "无效的项目状态")
	case errors.Is(err, scheduling.ErrInvalidTransition):
		response.BadRequest(c, 22103, err.Error())
	case errors.Is(err, scheduling.ErrUrgentRescheduleLocked):
		response.Conflict(c, 22104, "项目处于紧急改期状态，只能通过改派或指派技术员解除")
	case errors.Is(err, scheduling.ErrAssignmentRequired):
		response.BadRequest(c, 22105, "进入待安装状态前必须指派至少一名技术员")
	case errors.Is(err, service.ErrProjectTerminal):
		response.BadRequest(c, 22106, "项目已完成或已取消")
	case errors.Is(err, service.ErrEmptyAssignment):
		response.BadRequest(c, 22107, "指派列表不能为空")
	case errors.Is(err, service.ErrDuplicateTechnician):
		response.BadRequest(c, 22108, "技术员列表存在重复")
	case errors.Is(err, service.ErrTechnicianNotFound):
		response.BadRequest(c, 22109, "技术员不存在")
	case errors.Is(err, service.ErrTechnicianInactive):
		response.BadRequest(c, 22110, "技术员已停用")
	case errors.Is(err, service.ErrInvalidProgress):
		response.BadRequest(c, 22111, "进度必须在 0-100 之间")
	case errors.Is(err, service.ErrProgressUnchanged):
		response.BadRequest(c, 22112, "进度未变化")
	case errors.Is(err, service.ErrNoOpenAppointment):
		response.BadRequest(c, 22113, "项目没有未结预约")
	default:
		handleCommonError(c, err)
	}
}

func (h *ProjectHandler) handleReassignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 24101, "项目不存在")
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 24102, "预约不存在")
	case errors.Is(err, service.ErrProjectTerminal):
		response.BadRequest(c, 24103, "项目已完成或已取消")
	case errors.Is(err, service.ErrAppointmentMismatch):
		response.BadRequest(c, 24104, "预约不属于该项目")
	case errors.Is(err, service.ErrAppointmentLocked):
		response.BadRequest(c, 24105, "预约已开始或已完成，不能改派")
	case errors.Is(err, service.ErrSlotRequired):
		response.BadRequest(c, 24106, "缺少改派日期或时间")
	case errors.Is(err, service.ErrInvalidSlot):
		response.BadRequest(c, 24107, "日期或时间格式无效")
	case errors.Is(err, service.ErrReassignmentInProgress):
		response.Conflict(c, 24108, "该项目正在改派，请稍后重试")
	default:
		handleCommonError(c, err)
	}
}
