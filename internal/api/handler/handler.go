package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/backend/internal/service"
	pkgerrors "fieldops/backend/pkg/errors"
	"fieldops/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Availability   *AvailabilityHandler
	Project        *ProjectHandler
	Appointment    *AppointmentHandler
	Leave          *LeaveHandler
	Technician     *TechnicianHandler
	Export         *ExportHandler
	RescheduleLink *RescheduleLinkHandler
	Notification   *NotificationHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Availability:   NewAvailabilityHandler(svc.Availability),
		Project:        NewProjectHandler(svc.Project, svc.Reassignment),
		Appointment:    NewAppointmentHandler(svc.Appointment),
		Leave:          NewLeaveHandler(svc.Leave),
		Technician:     NewTechnicianHandler(svc.Technician, svc.Appointment),
		Export:         NewExportHandler(svc.Export),
		RescheduleLink: NewRescheduleLinkHandler(svc.RescheduleLink),
		Notification:   NewNotificationHandler(svc.Notification),
	}
}

// handleCommonError 处理跨模块的存储与并发错误
// 各模块 handleXError 在匹配不到业务错误时调用
func handleCommonError(c *gin.Context, err error) {
	if pwe, ok := pkgerrors.AsPartialWrite(err); ok {
		response.ErrorWithDetails(c, http.StatusInternalServerError, 50001, "写入未全部完成，请人工核对",
			fmt.Sprintf("committed=%s failed=%s resource=%s", pwe.Committed, pwe.Failed, pwe.ResourceID))
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 40901, pkgerrors.ErrOptimisticLock.Error())
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.Conflict(c, 40902, pkgerrors.ErrLockNotAcquired.Error())
	case pkgerrors.IsDataAccess(err):
		_ = c.Error(err)
		response.ServiceUnavailable(c, 50301, "数据服务暂不可用，请稍后重试")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
