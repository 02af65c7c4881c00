package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/config"
	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 请假模块业务错误 ──

var (
	ErrLeaveNotFound       = errors.New("请假记录不存在")
	ErrLeaveNotPending     = errors.New("只能审批待审核的请假")
	ErrLeaveNotCancellable = errors.New("只能取消待审核或已批准的请假")
	ErrInvalidLeaveRange   = errors.New("请假结束日期不能早于开始日期")
	ErrInvalidLeaveType    = errors.New("无效的请假类型")
)

// LeaveService 请假业务接口
type LeaveService interface {
	Create(ctx context.Context, req *dto.CreateLeaveRequest, actor string) (*dto.LeaveResponse, error)
	// Approve 批准请假并对请假期间（今天起）的未结预约自动改派
	Approve(ctx context.Context, id string, actor string) (*dto.LeaveApprovalResponse, error)
	Reject(ctx context.Context, id string, req *dto.RejectLeaveRequest, actor string) (*dto.LeaveResponse, error)
	Cancel(ctx context.Context, id string, actor string) (*dto.LeaveResponse, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]dto.LeaveResponse, error)
}

type leaveService struct {
	cfg      *config.SchedulingConfig
	repo     *repository.Repository
	reassign *reassignmentService
	logger   *zap.Logger
	now      func() time.Time
}

// NewLeaveService 创建 LeaveService 实例
func NewLeaveService(cfg *config.SchedulingConfig, repo *repository.Repository, reassign *reassignmentService, logger *zap.Logger) LeaveService {
	return &leaveService{cfg: cfg, repo: repo, reassign: reassign, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *leaveService) Create(ctx context.Context, req *dto.CreateLeaveRequest, actor string) (*dto.LeaveResponse, error) {
	if _, err := scheduling.ParseLeaveType(req.LeaveType); err != nil {
		return nil, ErrInvalidLeaveType
	}
	from, to, err := parseRange(&dto.DateRangeRequest{From: req.StartDate, To: req.EndDate})
	if err != nil {
		return nil, ErrInvalidLeaveRange
	}

	if _, err := s.repo.Technician.GetByID(ctx, req.TechnicianID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		s.logger.Error("查询技术员失败", zap.String("id", req.TechnicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.get", err)
	}

	leave := &model.Leave{
		TechnicianID: req.TechnicianID,
		LeaveType:    req.LeaveType,
		StartDate:    dbDate(from),
		EndDate:      dbDate(to),
		Status:       string(scheduling.LeavePending),
		Reason:       req.Reason,
	}
	leave.CreatedBy = &actor
	leave.UpdatedBy = &actor

	if err := s.repo.Leave.Create(ctx, leave); err != nil {
		s.logger.Error("创建请假失败", zap.String("technician_id", req.TechnicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("leave.create", err)
	}

	return toLeaveResponse(leave), nil
}

// ════════════════════════════════════════════════════════════
// Approve — 批准请假 + 自动改派
// ════════════════════════════════════════════════════════════
//
// 1. pending → approved
// 2. 技术员 availability_status → unavailable（失败只记日志）
// 3. 对 [max(开始日, 今天), 结束日] 内的未结预约逐个自动改派；
//    单个改派失败会把对应项目升级为紧急改期，不影响审批本身

func (s *leaveService) Approve(ctx context.Context, id string, actor string) (*dto.LeaveApprovalResponse, error) {
	leave, err := s.loadLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != string(scheduling.LeavePending) {
		return nil, ErrLeaveNotPending
	}

	// 受影响的预约在提交审批前读出，读失败则审批失败
	now := s.now()
	appts, err := s.affectedAppointments(ctx, leave, now)
	if err != nil {
		s.logger.Error("查询请假期间预约失败，拒绝批准",
			zap.String("leave_id", id),
			zap.String("technician_id", leave.TechnicianID),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDataAccessError("appointment.list", err)
	}

	leave.Status = string(scheduling.LeaveApproved)
	leave.ReviewedBy = &actor
	leave.ReviewedAt = &now
	leave.UpdatedBy = &actor
	if err := s.repo.Leave.Update(ctx, leave); err != nil {
		return nil, s.writeError("批准请假失败", id, err)
	}

	if err := s.repo.Technician.UpdateAvailability(ctx, leave.TechnicianID, string(scheduling.AvailabilityUnavailable), actor); err != nil {
		s.logger.Warn("更新技术员可用状态失败", zap.String("technician_id", leave.TechnicianID), zap.Error(err))
	}

	resp := &dto.LeaveApprovalResponse{
		Leave:         *toLeaveResponse(leave),
		Reassignments: []dto.ReassignmentResponse{},
	}

	for i := range appts {
		resp.Reassignments = append(resp.Reassignments, s.reassign.reassignAutomatically(ctx, &appts[i], actor, TriggerLeaveApproval))
	}

	s.logger.Info("请假已批准",
		zap.String("leave_id", id),
		zap.String("technician_id", leave.TechnicianID),
		zap.Int("appointments", len(appts)),
	)
	return resp, nil
}

// ────────────────────── Reject ──────────────────────

func (s *leaveService) Reject(ctx context.Context, id string, req *dto.RejectLeaveRequest, actor string) (*dto.LeaveResponse, error) {
	leave, err := s.loadLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != string(scheduling.LeavePending) {
		return nil, ErrLeaveNotPending
	}

	now := s.now()
	leave.Status = string(scheduling.LeaveRejected)
	leave.ReviewedBy = &actor
	leave.ReviewedAt = &now
	leave.ReviewNote = req.Reason
	leave.UpdatedBy = &actor
	if err := s.repo.Leave.Update(ctx, leave); err != nil {
		return nil, s.writeError("驳回请假失败", id, err)
	}

	return toLeaveResponse(leave), nil
}

// ────────────────────── Cancel ──────────────────────

func (s *leaveService) Cancel(ctx context.Context, id string, actor string) (*dto.LeaveResponse, error) {
	leave, err := s.loadLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	wasApproved := leave.Status == string(scheduling.LeaveApproved)
	if !wasApproved && leave.Status != string(scheduling.LeavePending) {
		return nil, ErrLeaveNotCancellable
	}

	leave.Status = string(scheduling.LeaveCancelled)
	leave.UpdatedBy = &actor
	if err := s.repo.Leave.Update(ctx, leave); err != nil {
		return nil, s.writeError("取消请假失败", id, err)
	}

	if wasApproved {
		s.restoreAvailability(ctx, leave.TechnicianID, actor)
	}

	return toLeaveResponse(leave), nil
}

// affectedAppointments [max(开始日, 今天), 结束日] 内该技术员的未结预约
func (s *leaveService) affectedAppointments(ctx context.Context, leave *model.Leave, now time.Time) ([]model.Appointment, error) {
	today := scheduling.DateOf(now, s.cfg.Location())
	from := civilDate(leave.StartDate)
	if from.Before(today) {
		from = today
	}
	to := civilDate(leave.EndDate)
	if from.After(to) {
		return nil, nil
	}
	return s.repo.Appointment.ListOpenByTechnicianBetween(ctx, leave.TechnicianID, scheduling.Midnight(from), scheduling.Midnight(to))
}

// restoreAvailability 今天没有其他已批准请假时恢复为 available
func (s *leaveService) restoreAvailability(ctx context.Context, technicianID, actor string) {
	today := scheduling.DateOf(s.now(), s.cfg.Location())
	others, err := s.repo.Leave.ListApprovedCoveringForTechnician(ctx, technicianID, scheduling.Midnight(today))
	if err != nil {
		s.logger.Warn("查询技术员请假失败", zap.String("technician_id", technicianID), zap.Error(err))
		return
	}
	if len(others) > 0 {
		return
	}
	if err := s.repo.Technician.UpdateAvailability(ctx, technicianID, string(scheduling.AvailabilityAvailable), actor); err != nil {
		s.logger.Warn("更新技术员可用状态失败", zap.String("technician_id", technicianID), zap.Error(err))
	}
}

// ────────────────────── ListByTechnician ──────────────────────

func (s *leaveService) ListByTechnician(ctx context.Context, technicianID string) ([]dto.LeaveResponse, error) {
	leaves, err := s.repo.Leave.ListByTechnician(ctx, technicianID)
	if err != nil {
		s.logger.Error("查询请假列表失败", zap.String("technician_id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("leave.list", err)
	}

	result := make([]dto.LeaveResponse, 0, len(leaves))
	for i := range leaves {
		result = append(result, *toLeaveResponse(&leaves[i]))
	}
	return result, nil
}

// ── 内部辅助 ──

func (s *leaveService) loadLeave(ctx context.Context, id string) (*model.Leave, error) {
	leave, err := s.repo.Leave.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeaveNotFound
		}
		s.logger.Error("查询请假失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("leave.get", err)
	}
	return leave, nil
}

func (s *leaveService) writeError(msg, id string, err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return err
	}
	s.logger.Error(msg, zap.String("id", id), zap.Error(err))
	return pkgerrors.NewDataAccessError("leave.update", err)
}
