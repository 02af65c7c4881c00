package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 项目模块业务错误 ──

var (
	ErrProjectNotFound      = errors.New("项目不存在")
	ErrInvalidProjectStatus = errors.New("无效的项目状态")
	ErrProjectTerminal      = errors.New("项目已完成或已取消")
	ErrEmptyAssignment      = errors.New("指派列表不能为空")
	ErrDuplicateTechnician  = errors.New("技术员列表存在重复")
	ErrTechnicianInactive   = errors.New("技术员已停用")
	ErrNoOpenAppointment    = errors.New("项目没有未结预约")
	ErrInvalidProgress      = errors.New("进度必须在 0-100 之间")
	ErrProgressUnchanged    = errors.New("进度未变化")
)

// ProjectService 项目业务接口
type ProjectService interface {
	GetProject(ctx context.Context, id string) (*dto.ProjectResponse, error)
	ListTimeline(ctx context.Context, id string) ([]dto.TimelineEntryResponse, error)
	AssignTechnicians(ctx context.Context, id string, req *dto.AssignTechniciansRequest, actor string) (*dto.ProjectResponse, error)
	ChangeStatus(ctx context.Context, id string, req *dto.ChangeProjectStatusRequest, actor string) (*dto.ProjectResponse, error)
	UpdateProgress(ctx context.Context, id string, req *dto.UpdateProgressRequest, actor string) (*dto.ProjectResponse, error)
	CountByStatus(ctx context.Context) ([]dto.StatusCountResponse, error)
	ListUrgent(ctx context.Context) ([]dto.ProjectResponse, error)
	// ReconcileAssignment 以未结预约为准修复 assigned_to[0]（改派部分写入后的补救）
	ReconcileAssignment(ctx context.Context, id string, actor string) (*dto.ProjectResponse, error)
}

type projectService struct {
	repo   *repository.Repository
	notify *notifier
	logger *zap.Logger
	now    func() time.Time
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(repo *repository.Repository, notify *notifier, logger *zap.Logger) ProjectService {
	return &projectService{repo: repo, notify: notify, logger: logger, now: time.Now}
}

// ────────────────────── GetProject ──────────────────────

func (s *projectService) GetProject(ctx context.Context, id string) (*dto.ProjectResponse, error) {
	p, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProjectResponse(p), nil
}

// ────────────────────── ListTimeline ──────────────────────

func (s *projectService) ListTimeline(ctx context.Context, id string) ([]dto.TimelineEntryResponse, error) {
	if _, err := s.loadProject(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.repo.Timeline.ListByProject(ctx, id)
	if err != nil {
		s.logger.Error("查询项目时间线失败", zap.String("project_id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("timeline.list", err)
	}

	result := make([]dto.TimelineEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toTimelineResponse(&entries[i]))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// AssignTechnicians — 指派技术员，进入待安装
// ════════════════════════════════════════════════════════════
//
// 1. 校验技术员存在且在职、列表无重复
// 2. 同一事务内：更新项目 assigned_to/状态、同步未结预约的技术员、追加时间线
// 3. 事务提交后逐一通知被指派的技术员（失败只记日志）
//
// 任何未终结状态都可指派（含紧急改期），与改派一样直接进入 pending_installation。

func (s *projectService) AssignTechnicians(ctx context.Context, id string, req *dto.AssignTechniciansRequest, actor string) (*dto.ProjectResponse, error) {
	if len(req.TechnicianIDs) == 0 {
		return nil, ErrEmptyAssignment
	}
	seen := make(map[string]bool, len(req.TechnicianIDs))
	for _, tid := range req.TechnicianIDs {
		if seen[tid] {
			return nil, ErrDuplicateTechnician
		}
		seen[tid] = true
	}

	p, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	from, err := parseStoredProjectStatus(p)
	if err != nil {
		return nil, err
	}
	// 与自动改派同一前置条件：未终结即可指派，不走常规状态机
	if !scheduling.CanReschedule(from) {
		return nil, ErrProjectTerminal
	}

	techs, err := s.repo.Technician.ListByIDs(ctx, req.TechnicianIDs)
	if err != nil {
		s.logger.Error("查询技术员失败", zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.list", err)
	}
	byID := make(map[string]*model.Technician, len(techs))
	for i := range techs {
		byID[techs[i].TechnicianID] = &techs[i]
	}
	for _, tid := range req.TechnicianIDs {
		t, ok := byID[tid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTechnicianNotFound, tid)
		}
		if !t.Active {
			return nil, fmt.Errorf("%w: %s", ErrTechnicianInactive, tid)
		}
	}

	p.AssignedTo = model.StringArray(append([]string(nil), req.TechnicianIDs...))
	p.Status = string(scheduling.ProjectPendingInstallation)
	p.UpdatedBy = &actor
	primary := req.TechnicianIDs[0]

	err = s.repo.Tx.WithinTransaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Project.Update(ctx, p); err != nil {
			return err
		}

		appt, err := tx.Appointment.GetOpenByProject(ctx, p.ProjectID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case appt.TechnicianID != primary:
			appt.TechnicianID = primary
			appt.UpdatedBy = &actor
			if err := tx.Appointment.Update(ctx, appt); err != nil {
				return err
			}
		}

		desc := fmt.Sprintf("指派技术员 %s，状态 %s → %s", strings.Join(req.TechnicianIDs, ", "), from, scheduling.ProjectPendingInstallation)
		if from == scheduling.ProjectPendingInstallation {
			desc = "重新指派技术员 " + strings.Join(req.TechnicianIDs, ", ")
		}
		return appendTimeline(ctx, tx, p.ProjectID, s.now(), timelineEntry{
			Actor:       actor,
			Kind:        TimelineAssignment,
			Description: desc,
			Details: map[string]interface{}{
				"from":           string(from),
				"to":             p.Status,
				"technician_ids": req.TechnicianIDs,
			},
		})
	})
	if err != nil {
		return nil, s.writeError("指派技术员失败", p.ProjectID, err)
	}

	notices := make([]Notice, 0, len(req.TechnicianIDs))
	for _, tid := range req.TechnicianIDs {
		notices = append(notices, Notice{
			UserID:  byID[tid].UserID,
			Type:    NoticeAssignment,
			Title:   "新的安装任务",
			Message: fmt.Sprintf("您已被指派到项目「%s」", p.Name),
			Link:    "/projects/" + p.ProjectID,
		})
	}
	s.notify.send(ctx, notices...)

	return toProjectResponse(p), nil
}

// ════════════════════════════════════════════════════════════
// ChangeStatus — 常规状态流转
// ════════════════════════════════════════════════════════════

func (s *projectService) ChangeStatus(ctx context.Context, id string, req *dto.ChangeProjectStatusRequest, actor string) (*dto.ProjectResponse, error) {
	to, err := scheduling.ParseProjectStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProjectStatus, req.Status)
	}

	p, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	from, err := parseStoredProjectStatus(p)
	if err != nil {
		return nil, err
	}
	if err := scheduling.CheckProjectTransition(from, to, len(p.AssignedTo)); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("状态 %s → %s", from, to)
	if req.Note != "" {
		desc += "：" + req.Note
	}

	p.Status = string(to)
	p.UpdatedBy = &actor
	if err := commitProject(ctx, s.repo, p, s.now(), timelineEntry{
		Actor:       actor,
		Kind:        TimelineStatusChange,
		Description: desc,
		Details:     map[string]interface{}{"from": string(from), "to": string(to)},
	}); err != nil {
		return nil, s.writeError("修改项目状态失败", p.ProjectID, err)
	}

	s.notifyAssigned(ctx, p, NoticeStatusChange, "项目状态变更", fmt.Sprintf("项目「%s」状态已变更为 %s", p.Name, to))

	return toProjectResponse(p), nil
}

// ════════════════════════════════════════════════════════════
// UpdateProgress — 进度与状态相互独立
// ════════════════════════════════════════════════════════════

func (s *projectService) UpdateProgress(ctx context.Context, id string, req *dto.UpdateProgressRequest, actor string) (*dto.ProjectResponse, error) {
	if req.Progress == nil || *req.Progress < 0 || *req.Progress > 100 {
		return nil, ErrInvalidProgress
	}
	next := *req.Progress

	p, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := p.Progress
	if next == prev {
		return nil, ErrProgressUnchanged
	}

	desc := fmt.Sprintf("进度 %d%% → %d%%", prev, next)
	if next < prev {
		desc = fmt.Sprintf("进度更正 %d%% → %d%%", prev, next)
		s.logger.Warn("项目进度回退",
			zap.String("project_id", id),
			zap.Int("from", prev),
			zap.Int("to", next),
			zap.String("actor", actor),
		)
	}

	p.Progress = next
	p.UpdatedBy = &actor
	if err := commitProject(ctx, s.repo, p, s.now(), timelineEntry{
		Actor:       actor,
		Kind:        TimelineProgress,
		Description: desc,
		Details:     map[string]interface{}{"from": prev, "to": next},
	}); err != nil {
		return nil, s.writeError("更新项目进度失败", p.ProjectID, err)
	}

	return toProjectResponse(p), nil
}

// ────────────────────── CountByStatus ──────────────────────

func (s *projectService) CountByStatus(ctx context.Context) ([]dto.StatusCountResponse, error) {
	rows, err := s.repo.Project.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("统计项目状态失败", zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.count", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	// 按状态机顺序输出，没有项目的状态补 0
	result := make([]dto.StatusCountResponse, 0, len(scheduling.AllProjectStatuses))
	for _, st := range scheduling.AllProjectStatuses {
		result = append(result, dto.StatusCountResponse{Status: string(st), Count: counts[string(st)]})
	}
	return result, nil
}

// ────────────────────── ListUrgent ──────────────────────

func (s *projectService) ListUrgent(ctx context.Context) ([]dto.ProjectResponse, error) {
	projects, err := s.repo.Project.ListByStatus(ctx, string(scheduling.ProjectUrgentReschedule))
	if err != nil {
		s.logger.Error("查询紧急改期项目失败", zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.list", err)
	}

	result := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		result = append(result, *toProjectResponse(&projects[i]))
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// ReconcileAssignment — 以预约为准修复项目指派缓存
// ════════════════════════════════════════════════════════════

func (s *projectService) ReconcileAssignment(ctx context.Context, id string, actor string) (*dto.ProjectResponse, error) {
	p, err := s.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.Appointment.GetOpenByProject(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOpenAppointment
		}
		s.logger.Error("查询项目预约失败", zap.String("project_id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.get", err)
	}

	date := appt.ScheduledDate
	clock := appt.ScheduledTime
	sameDate := p.ScheduledDate != nil && formatDBDate(*p.ScheduledDate) == formatDBDate(date)
	sameTime := p.ScheduledTime != nil && *p.ScheduledTime == clock
	if p.AssignedTo.First() == appt.TechnicianID && sameDate && sameTime {
		return toProjectResponse(p), nil
	}

	previous := p.AssignedTo.First()
	p.AssignedTo = withPrimary(p.AssignedTo, appt.TechnicianID)
	p.ScheduledDate = &date
	p.ScheduledTime = &clock
	p.UpdatedBy = &actor
	if err := commitProject(ctx, s.repo, p, s.now(), timelineEntry{
		Actor:       actor,
		Kind:        TimelineAssignment,
		Description: fmt.Sprintf("按预约 %s 校正主技术员 %s → %s", appt.AppointmentID, previous, appt.TechnicianID),
		Details: map[string]interface{}{
			"appointment_id": appt.AppointmentID,
			"from":           previous,
			"to":             appt.TechnicianID,
		},
	}); err != nil {
		return nil, s.writeError("校正项目指派失败", p.ProjectID, err)
	}

	return toProjectResponse(p), nil
}

// ── 内部辅助 ──

func (s *projectService) loadProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.repo.Project.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.get", err)
	}
	return p, nil
}

func (s *projectService) writeError(msg, projectID string, err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return err
	}
	s.logger.Error(msg, zap.String("project_id", projectID), zap.Error(err))
	return pkgerrors.NewDataAccessError("project.write", err)
}

// notifyAssigned 通知项目当前指派的全部技术员；查询失败只记日志
func (s *projectService) notifyAssigned(ctx context.Context, p *model.Project, typ, title, msg string) {
	if len(p.AssignedTo) == 0 {
		return
	}
	techs, err := s.repo.Technician.ListByIDs(ctx, p.AssignedTo)
	if err != nil {
		s.logger.Warn("查询通知收件人失败", zap.String("failure", "notification"), zap.Error(err))
		return
	}
	notices := make([]Notice, 0, len(techs))
	for i := range techs {
		notices = append(notices, Notice{
			UserID: techs[i].UserID, Type: typ, Title: title, Message: msg,
			Link: "/projects/" + p.ProjectID,
		})
	}
	s.notify.send(ctx, notices...)
}

func parseStoredProjectStatus(p *model.Project) (scheduling.ProjectStatus, error) {
	st, err := scheduling.ParseProjectStatus(p.Status)
	if err != nil {
		return "", corrupt("project", p.ProjectID, err)
	}
	return st, nil
}

// withPrimary 将 id 置为第一位，保留其余协助技术员的相对顺序
func withPrimary(list model.StringArray, id string) model.StringArray {
	out := model.StringArray{id}
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
