package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/config"
	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 改派模块业务错误 ──

var (
	ErrReassignmentInProgress = errors.New("该项目正在改派，请稍后重试")
	ErrAppointmentMismatch    = errors.New("预约不属于该项目")
	ErrAppointmentLocked      = errors.New("预约已开始或已完成，不能改派")
	ErrSlotRequired           = errors.New("缺少改派日期或时间")
)

// 改派触发来源
const (
	TriggerManual        = "manual"
	TriggerLeaveApproval = "leave_approval"
	TriggerClient        = "client_reschedule"
	TriggerDeactivation  = "technician_deactivated"
)

// ReassignmentService 改派业务接口
type ReassignmentService interface {
	// Reassign 手动改派；没有候选人时项目转为 urgent_reschedule，返回 no_candidates 结果而非错误
	Reassign(ctx context.Context, projectID string, req *dto.ReassignRequest, actor string) (*dto.ReassignmentResponse, error)
}

// reassignInput 一次改派的完整输入
type reassignInput struct {
	ProjectID     string
	AppointmentID string
	OutgoingID    string
	Date          *civil.Date
	Time          *civil.Time
	Actor         string
	Trigger       string
	// IncludeOutgoing 为 true 时原技术员也可以是候选（客户自助改期）
	IncludeOutgoing bool
}

type reassignmentService struct {
	cfg    *config.SchedulingConfig
	repo   *repository.Repository
	locker Locker
	notify *notifier
	logger *zap.Logger
	now    func() time.Time
}

func newReassignmentService(cfg *config.SchedulingConfig, repo *repository.Repository, locker Locker, notify *notifier, logger *zap.Logger) *reassignmentService {
	return &reassignmentService{
		cfg:    cfg,
		repo:   repo,
		locker: locker,
		notify: notify,
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── Reassign ──────────────────────

func (s *reassignmentService) Reassign(ctx context.Context, projectID string, req *dto.ReassignRequest, actor string) (*dto.ReassignmentResponse, error) {
	in := reassignInput{
		ProjectID:     projectID,
		AppointmentID: req.AppointmentID,
		OutgoingID:    req.OutgoingTechnicianID,
		Actor:         actor,
		Trigger:       TriggerManual,
	}
	if req.Date != "" {
		d, err := scheduling.ParseDate(req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
		}
		in.Date = &d
	}
	if req.Time != "" {
		c, err := scheduling.ParseClock(req.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
		}
		in.Time = &c
	}
	return s.run(ctx, in)
}

// ════════════════════════════════════════════════════════════
// run — 改派主流程
// ════════════════════════════════════════════════════════════
//
//  1. 读取项目与预约
//  2. 项目级分布式锁（Redis 不可用时只依赖乐观锁）
//  3. 计算候选人（排除原技术员）
//  4. 提交前逐个二次确认候选人当天仍然空闲
//  5. 先写预约，再在一个事务内写项目 + 时间线；
//     项目写入失败时重新读取并重试，仍失败则返回 PartialWriteError
//  6. 尽力通知新旧技术员

func (s *reassignmentService) run(ctx context.Context, in reassignInput) (*dto.ReassignmentResponse, error) {
	p, err := s.loadProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	status, err := parseStoredProjectStatus(p)
	if err != nil {
		return nil, err
	}
	if !scheduling.CanReschedule(status) {
		return nil, ErrProjectTerminal
	}

	appt, err := s.loadAppointment(ctx, in, p)
	if err != nil {
		return nil, err
	}

	slot, err := resolveSlot(in, appt, p)
	if err != nil {
		return nil, err
	}

	outgoing := in.OutgoingID
	if outgoing == "" && appt != nil {
		outgoing = appt.TechnicianID
	}
	if outgoing == "" {
		outgoing = p.AssignedTo.First()
	}

	release, err := s.lock(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	exclude := outgoing
	if in.IncludeOutgoing {
		exclude = ""
	}
	ignore := ""
	if appt != nil {
		ignore = appt.AppointmentID
	}

	candidates, err := findCandidates(ctx, s.repo, slot, exclude, ignore)
	if err != nil {
		s.logger.Error("改派查询候选人失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, err
	}

	chosen, err := s.pick(ctx, candidates, slot, ignore)
	if err != nil {
		s.logger.Error("改派二次确认失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, err
	}
	if chosen == nil {
		return s.escalate(ctx, p, in, slot, outgoing, ignore, len(candidates))
	}

	// ── 写预约（失败时尚未提交任何内容）──
	if appt == nil {
		appt = &model.Appointment{ProjectID: p.ProjectID}
		appt.CreatedBy = &in.Actor
	}
	appt.TechnicianID = chosen.TechnicianID
	appt.ScheduledDate = dbDate(slot.Date)
	appt.ScheduledTime = scheduling.FormatClock(slot.Time)
	appt.Status = string(scheduling.AppointmentScheduled)
	appt.UpdatedBy = &in.Actor

	if appt.AppointmentID == "" {
		err = s.repo.Appointment.Create(ctx, appt)
	} else {
		err = s.repo.Appointment.Update(ctx, appt)
	}
	if err != nil {
		s.logger.Error("改派写入预约失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.write", err)
	}

	// ── 写项目 + 时间线 ──
	date := appt.ScheduledDate
	clock := appt.ScheduledTime
	mutate := func(p *model.Project) {
		p.AssignedTo = model.StringArray{chosen.TechnicianID}
		p.Status = string(scheduling.ProjectPendingInstallation)
		p.ScheduledDate = &date
		p.ScheduledTime = &clock
		p.UpdatedBy = &in.Actor
	}
	entry := timelineEntry{
		Actor:       in.Actor,
		Kind:        TimelineReassignment,
		Description: fmt.Sprintf("改派：%s → %s（%s），状态 %s → %s", orDash(outgoing), chosen.Name, slot, status, scheduling.ProjectPendingInstallation),
		Details: map[string]interface{}{
			"trigger":        in.Trigger,
			"from":           outgoing,
			"to":             chosen.TechnicianID,
			"appointment_id": appt.AppointmentID,
			"date":           scheduling.FormatDate(slot.Date),
			"time":           scheduling.FormatClock(slot.Time),
			"status_from":    string(status),
		},
	}
	if err := s.writeProject(ctx, p, mutate, entry); err != nil {
		s.logger.Error("改派部分写入：预约已更新，项目写入失败",
			zap.String("failure", "partial_write"),
			zap.String("project_id", p.ProjectID),
			zap.String("appointment_id", appt.AppointmentID),
			zap.String("technician_id", chosen.TechnicianID),
			zap.Error(err),
		)
		return nil, &pkgerrors.PartialWriteError{
			Committed:  "appointment",
			Failed:     "project",
			ResourceID: p.ProjectID,
			Err:        err,
		}
	}

	s.logger.Info("改派成功",
		zap.String("project_id", p.ProjectID),
		zap.String("appointment_id", appt.AppointmentID),
		zap.String("from", outgoing),
		zap.String("to", chosen.TechnicianID),
		zap.String("trigger", in.Trigger),
	)

	s.notifyReassigned(ctx, p, slot, outgoing, chosen.TechnicianID)

	return &dto.ReassignmentResponse{
		Outcome:              dto.OutcomeReassigned,
		ProjectID:            p.ProjectID,
		AppointmentID:        appt.AppointmentID,
		TechnicianID:         chosen.TechnicianID,
		TechnicianName:       chosen.Name,
		PreviousTechnicianID: outgoing,
		ProjectStatus:        p.Status,
		Date:                 scheduling.FormatDate(slot.Date),
		Time:                 scheduling.FormatClock(slot.Time),
	}, nil
}

// ════════════════════════════════════════════════════════════
// 自动改派（请假审批、技术员停用触发）
// ════════════════════════════════════════════════════════════

// reassignAutomatically 任何失败都尝试把项目升级为紧急改期，错误不向上返回
func (s *reassignmentService) reassignAutomatically(ctx context.Context, appt *model.Appointment, actor, trigger string) dto.ReassignmentResponse {
	resp, err := s.run(ctx, reassignInput{
		ProjectID:     appt.ProjectID,
		AppointmentID: appt.AppointmentID,
		OutgoingID:    appt.TechnicianID,
		Actor:         actor,
		Trigger:       trigger,
	})
	if err == nil {
		return *resp
	}

	s.logger.Error("自动改派失败，尝试升级为紧急改期",
		zap.String("project_id", appt.ProjectID),
		zap.String("appointment_id", appt.AppointmentID),
		zap.String("trigger", trigger),
		zap.Error(err),
	)
	out := dto.ReassignmentResponse{
		Outcome:              dto.OutcomeFailed,
		ProjectID:            appt.ProjectID,
		AppointmentID:        appt.AppointmentID,
		PreviousTechnicianID: appt.TechnicianID,
		Date:                 formatDBDate(appt.ScheduledDate),
		Time:                 appt.ScheduledTime,
		Error:                err.Error(),
	}

	if eerr := s.forceEscalate(ctx, appt.ProjectID, actor, trigger, err); eerr != nil {
		s.logger.Error("升级紧急改期失败", zap.String("project_id", appt.ProjectID), zap.Error(eerr))
		return out
	}
	out.Outcome = dto.OutcomeEscalated
	out.ProjectStatus = string(scheduling.ProjectUrgentReschedule)
	return out
}

// forceEscalate 自动改派出错后的兜底升级
func (s *reassignmentService) forceEscalate(ctx context.Context, projectID, actor, trigger string, cause error) error {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	status, err := parseStoredProjectStatus(p)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return ErrProjectTerminal
	}

	return s.writeProject(ctx, p, func(p *model.Project) {
		p.Status = string(scheduling.ProjectUrgentReschedule)
		p.UpdatedBy = &actor
	}, timelineEntry{
		Actor:       actor,
		Kind:        TimelineEscalation,
		Description: fmt.Sprintf("自动改派失败，状态 %s → %s", status, scheduling.ProjectUrgentReschedule),
		Details: map[string]interface{}{
			"trigger":     trigger,
			"error":       cause.Error(),
			"status_from": string(status),
		},
	})
}

// ── 无候选人：升级为紧急改期 ──

func (s *reassignmentService) escalate(ctx context.Context, p *model.Project, in reassignInput, slot scheduling.Slot, outgoing, appointmentID string, considered int) (*dto.ReassignmentResponse, error) {
	from := p.Status
	err := s.writeProject(ctx, p, func(p *model.Project) {
		p.Status = string(scheduling.ProjectUrgentReschedule)
		p.UpdatedBy = &in.Actor
	}, timelineEntry{
		Actor:       in.Actor,
		Kind:        TimelineEscalation,
		Description: fmt.Sprintf("%s 无可用技术员，状态 %s → %s", slot, from, scheduling.ProjectUrgentReschedule),
		Details: map[string]interface{}{
			"trigger":     in.Trigger,
			"from":        outgoing,
			"date":        scheduling.FormatDate(slot.Date),
			"time":        scheduling.FormatClock(slot.Time),
			"considered":  considered,
			"status_from": from,
		},
	})
	if err != nil {
		s.logger.Error("升级紧急改期失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.escalate", err)
	}

	s.logger.Warn("无可用技术员，项目转为紧急改期",
		zap.String("project_id", p.ProjectID),
		zap.String("slot", slot.String()),
		zap.String("trigger", in.Trigger),
	)

	return &dto.ReassignmentResponse{
		Outcome:              dto.OutcomeNoCandidates,
		ProjectID:            p.ProjectID,
		AppointmentID:        appointmentID,
		PreviousTechnicianID: outgoing,
		ProjectStatus:        p.Status,
		Date:                 scheduling.FormatDate(slot.Date),
		Time:                 scheduling.FormatClock(slot.Time),
	}, nil
}

// ── 内部辅助 ──

// writeProject 提交项目变更；失败时重新读取最新版本、重放 mutate 后重试
func (s *reassignmentService) writeProject(ctx context.Context, p *model.Project, mutate func(*model.Project), entry timelineEntry) error {
	mutate(p)
	err := commitProject(ctx, s.repo, p, s.now(), entry)
	for attempt := 1; err != nil && attempt <= s.cfg.PartialWriteRetries; attempt++ {
		s.logger.Warn("项目写入失败，重新读取后重试",
			zap.String("project_id", p.ProjectID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		fresh, gerr := s.repo.Project.GetByID(ctx, p.ProjectID)
		if gerr != nil {
			err = gerr
			continue
		}
		mutate(fresh)
		if err = commitProject(ctx, s.repo, fresh, s.now(), entry); err == nil {
			*p = *fresh
		}
	}
	return err
}

// pick 按候选顺序二次确认，返回第一个仍然空闲的技术员
func (s *reassignmentService) pick(ctx context.Context, candidates []scheduling.Candidate, slot scheduling.Slot, ignoreAppointmentID string) (*scheduling.Candidate, error) {
	for i := range candidates {
		free, err := isTechnicianFree(ctx, s.repo, candidates[i].TechnicianID, slot, ignoreAppointmentID)
		if err != nil {
			return nil, err
		}
		if free {
			return &candidates[i], nil
		}
		s.logger.Info("候选技术员已被占用，跳过",
			zap.String("technician_id", candidates[i].TechnicianID),
			zap.String("slot", slot.String()),
		)
	}
	return nil, nil
}

func (s *reassignmentService) lock(ctx context.Context, projectID string) (func(context.Context) error, error) {
	if s.locker == nil {
		return nil, nil
	}
	release, err := s.locker.Acquire(ctx, "reassign:project:"+projectID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrLockNotAcquired) {
			return nil, ErrReassignmentInProgress
		}
		s.logger.Warn("获取改派锁失败，仅依赖乐观锁", zap.String("project_id", projectID), zap.Error(err))
		return nil, nil
	}
	return release, nil
}

func (s *reassignmentService) loadProject(ctx context.Context, id string) (*model.Project, error) {
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

// loadAppointment 指定了预约 ID 时必须存在且属于该项目；
// 未指定时取项目的未结预约，没有则返回 nil（改派时新建）
func (s *reassignmentService) loadAppointment(ctx context.Context, in reassignInput, p *model.Project) (*model.Appointment, error) {
	var (
		appt *model.Appointment
		err  error
	)
	if in.AppointmentID != "" {
		appt, err = s.repo.Appointment.GetByID(ctx, in.AppointmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAppointmentNotFound
			}
			return nil, pkgerrors.NewDataAccessError("appointment.get", err)
		}
		if appt.ProjectID != p.ProjectID {
			return nil, ErrAppointmentMismatch
		}
	} else {
		appt, err = s.repo.Appointment.GetOpenByProject(ctx, p.ProjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, pkgerrors.NewDataAccessError("appointment.get", err)
		}
	}

	st, err := scheduling.ParseAppointmentStatus(appt.Status)
	if err != nil {
		return nil, corrupt("appointment", appt.AppointmentID, err)
	}
	if !scheduling.CanResetToScheduled(st) {
		return nil, ErrAppointmentLocked
	}
	return appt, nil
}

// resolveSlot 日期与时刻依次取：显式指定 → 预约 → 项目排期
func resolveSlot(in reassignInput, appt *model.Appointment, p *model.Project) (scheduling.Slot, error) {
	var (
		slot              scheduling.Slot
		haveDate, haveClk bool
	)

	switch {
	case in.Date != nil:
		slot.Date, haveDate = *in.Date, true
	case appt != nil:
		slot.Date, haveDate = civilDate(appt.ScheduledDate), true
	case p.ScheduledDate != nil:
		slot.Date, haveDate = civilDate(*p.ScheduledDate), true
	}

	var raw *string
	switch {
	case in.Time != nil:
		slot.Time, haveClk = *in.Time, true
	case appt != nil:
		raw = &appt.ScheduledTime
	case p.ScheduledTime != nil:
		raw = p.ScheduledTime
	}
	if raw != nil {
		c, err := scheduling.ParseClock(*raw)
		if err != nil {
			return scheduling.Slot{}, corrupt("project", p.ProjectID, err)
		}
		slot.Time, haveClk = c, true
	}

	if !haveDate || !haveClk {
		return scheduling.Slot{}, ErrSlotRequired
	}
	return slot, nil
}

func (s *reassignmentService) notifyReassigned(ctx context.Context, p *model.Project, slot scheduling.Slot, outgoing, incoming string) {
	ids := []string{incoming}
	if outgoing != "" && outgoing != incoming {
		ids = append(ids, outgoing)
	}
	techs, err := s.repo.Technician.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("查询通知收件人失败", zap.String("failure", "notification"), zap.Error(err))
		return
	}

	notices := make([]Notice, 0, len(techs))
	for i := range techs {
		n := Notice{UserID: techs[i].UserID, Type: NoticeReassignment, Link: "/projects/" + p.ProjectID}
		if techs[i].TechnicianID == incoming {
			n.Title = "新的改派任务"
			n.Message = fmt.Sprintf("项目「%s」已改派给您，上门时间 %s", p.Name, slot)
		} else {
			n.Title = "任务已改派"
			n.Message = fmt.Sprintf("项目「%s」（%s）已改派给其他技术员", p.Name, slot)
		}
		notices = append(notices, n)
	}
	s.notify.send(ctx, notices...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
