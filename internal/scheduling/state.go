package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition 状态流转不合法
	ErrInvalidTransition = errors.New("状态流转不合法")
	// ErrUrgentRescheduleLocked 紧急改期状态只能通过改派/指派解除
	ErrUrgentRescheduleLocked = errors.New("项目处于紧急改期状态，只能通过改派或指派技术员解除")
	// ErrAssignmentRequired 进入待安装状态前必须已指派技术员
	ErrAssignmentRequired = errors.New("进入待安装状态前必须指派至少一名技术员")
)

// ════════════════════════════════════════════════════════════
// 项目状态机
// ════════════════════════════════════════════════════════════

// ProjectStatus 项目生命周期状态
type ProjectStatus string

const (
	ProjectPendingOnboarding   ProjectStatus = "pending_onboarding"
	ProjectPendingScheduling   ProjectStatus = "pending_scheduling"
	ProjectPendingAssignment   ProjectStatus = "pending_assignment"
	ProjectPendingInstallation ProjectStatus = "pending_installation"
	ProjectActive              ProjectStatus = "active"
	ProjectInProgress          ProjectStatus = "in_progress"
	ProjectCompleted           ProjectStatus = "completed"

	ProjectPaused           ProjectStatus = "paused"
	ProjectPendingClient    ProjectStatus = "pending_client"
	ProjectInReview         ProjectStatus = "in_review"
	ProjectUrgentReschedule ProjectStatus = "urgent_reschedule"
	ProjectCancelled        ProjectStatus = "cancelled"
	ProjectIncomplete       ProjectStatus = "incomplete"
)

// AllProjectStatuses 全部项目状态（看板统计按此顺序输出）
var AllProjectStatuses = []ProjectStatus{
	ProjectPendingOnboarding, ProjectPendingScheduling, ProjectPendingAssignment,
	ProjectPendingInstallation, ProjectActive, ProjectInProgress, ProjectCompleted,
	ProjectPaused, ProjectPendingClient, ProjectInReview, ProjectUrgentReschedule,
	ProjectCancelled, ProjectIncomplete,
}

// 主线（不含终态）：挂起类状态恢复时可回到其中任一
var projectMainPath = []ProjectStatus{
	ProjectPendingOnboarding, ProjectPendingScheduling, ProjectPendingAssignment,
	ProjectPendingInstallation, ProjectActive, ProjectInProgress,
}

// 可从任意非终态进入的旁路状态
var projectSideBranches = []ProjectStatus{
	ProjectPaused, ProjectPendingClient, ProjectInReview,
	ProjectIncomplete, ProjectCancelled, ProjectUrgentReschedule,
}

var projectForward = map[ProjectStatus][]ProjectStatus{
	ProjectPendingOnboarding:   {ProjectPendingScheduling},
	ProjectPendingScheduling:   {ProjectPendingAssignment},
	ProjectPendingAssignment:   {ProjectPendingInstallation},
	ProjectPendingInstallation: {ProjectActive, ProjectInProgress},
	ProjectActive:              {ProjectInProgress, ProjectCompleted},
	ProjectInProgress:          {ProjectActive, ProjectCompleted},
}

var projectTransitions = buildProjectTransitions()

func buildProjectTransitions() map[ProjectStatus]map[ProjectStatus]bool {
	t := make(map[ProjectStatus]map[ProjectStatus]bool)
	add := func(from, to ProjectStatus) {
		if from == to {
			return
		}
		if t[from] == nil {
			t[from] = make(map[ProjectStatus]bool)
		}
		t[from][to] = true
	}

	for from, tos := range projectForward {
		for _, to := range tos {
			add(from, to)
		}
	}
	for _, from := range projectMainPath {
		for _, to := range projectSideBranches {
			add(from, to)
		}
	}
	// 挂起类状态：可恢复到主线，也可在旁路间切换；紧急改期除外
	for _, from := range []ProjectStatus{ProjectPaused, ProjectPendingClient, ProjectInReview, ProjectIncomplete} {
		for _, to := range projectMainPath {
			add(from, to)
		}
		for _, to := range projectSideBranches {
			add(from, to)
		}
	}
	return t
}

// ParseProjectStatus 校验并转换项目状态
func ParseProjectStatus(s string) (ProjectStatus, error) {
	v := ProjectStatus(s)
	for _, known := range AllProjectStatuses {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("未知的项目状态 %q", s)
}

// Terminal 是否终态
func (s ProjectStatus) Terminal() bool {
	return s == ProjectCompleted || s == ProjectCancelled
}

// CheckProjectTransition 校验常规状态修改（管理员手动改状态）
// assigned 为项目当前指派的技术员数量
func CheckProjectTransition(from, to ProjectStatus, assigned int) error {
	if from == ProjectUrgentReschedule {
		return ErrUrgentRescheduleLocked
	}
	if !projectTransitions[from][to] {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	if to == ProjectPendingInstallation && assigned == 0 {
		return ErrAssignmentRequired
	}
	return nil
}

// CanReschedule 改派/指派动作能否作用于该状态的项目
// 这是唯一能解除 urgent_reschedule 的路径
func CanReschedule(from ProjectStatus) bool {
	return !from.Terminal()
}

// ════════════════════════════════════════════════════════════
// 预约状态机
// ════════════════════════════════════════════════════════════

// AppointmentStatus 预约状态
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentOnRoute    AppointmentStatus = "on_route"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentIncomplete AppointmentStatus = "incomplete"
)

var appointmentTransitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	AppointmentScheduled: {
		AppointmentOnRoute: true, AppointmentCancelled: true, AppointmentIncomplete: true,
	},
	AppointmentOnRoute: {
		AppointmentInProgress: true, AppointmentCancelled: true, AppointmentIncomplete: true,
	},
	AppointmentInProgress: {
		AppointmentCompleted: true, AppointmentCancelled: true, AppointmentIncomplete: true,
	},
}

// ParseAppointmentStatus 校验并转换预约状态
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch v := AppointmentStatus(s); v {
	case AppointmentScheduled, AppointmentOnRoute, AppointmentInProgress,
		AppointmentCompleted, AppointmentCancelled, AppointmentIncomplete:
		return v, nil
	}
	return "", fmt.Errorf("未知的预约状态 %q", s)
}

// Open 非取消、非完成的预约仍占用技术员
func (s AppointmentStatus) Open() bool {
	return s != AppointmentCancelled && s != AppointmentCompleted
}

// ClosedAppointmentStatuses 不占用技术员的预约状态（供查询条件使用）
var ClosedAppointmentStatuses = []string{string(AppointmentCancelled), string(AppointmentCompleted)}

// CheckAppointmentTransition 校验预约常规状态流转
func CheckAppointmentTransition(from, to AppointmentStatus) error {
	if !appointmentTransitions[from][to] {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanResetToScheduled 改派时能否把预约重置为 scheduled
func CanResetToScheduled(from AppointmentStatus) bool {
	switch from {
	case AppointmentScheduled, AppointmentOnRoute, AppointmentIncomplete, AppointmentCancelled:
		return true
	}
	return false
}
