package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 可用性模块业务错误 ──

var (
	ErrInvalidSlot        = errors.New("日期或时间格式无效")
	ErrTechnicianNotFound = errors.New("技术员不存在")
)

// AvailabilityService 技术员可用性查询接口
type AvailabilityService interface {
	// FindCandidates 返回指定日期时刻可接单的技术员；空列表不是错误
	FindCandidates(ctx context.Context, req *dto.FindCandidatesRequest) (*dto.CandidateListResponse, error)
	// EvaluateTechnician 给出单个技术员在该时刻不可用的全部原因
	EvaluateTechnician(ctx context.Context, technicianID string, req *dto.EvaluateTechnicianRequest) (*dto.EvaluationResponse, error)
}

type availabilityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(repo *repository.Repository, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, logger: logger}
}

// ────────────────────── FindCandidates ──────────────────────

func (s *availabilityService) FindCandidates(ctx context.Context, req *dto.FindCandidatesRequest) (*dto.CandidateListResponse, error) {
	slot, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	candidates, err := findCandidates(ctx, s.repo, slot, req.ExcludeTechnicianID, "")
	if err != nil {
		s.logger.Error("查询候选技术员失败", zap.String("slot", slot.String()), zap.Error(err))
		return nil, err
	}

	list := make([]dto.CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, dto.CandidateResponse{TechnicianID: c.TechnicianID, Name: c.Name, Email: c.Email})
	}

	return &dto.CandidateListResponse{
		Date:       scheduling.FormatDate(slot.Date),
		Time:       scheduling.FormatClock(slot.Time),
		Candidates: list,
		Count:      len(list),
	}, nil
}

// ────────────────────── EvaluateTechnician ──────────────────────

func (s *availabilityService) EvaluateTechnician(ctx context.Context, technicianID string, req *dto.EvaluateTechnicianRequest) (*dto.EvaluationResponse, error) {
	slot, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.Technician.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		s.logger.Error("查询技术员失败", zap.String("id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.get", err)
	}
	tech, err := toDomainTechnician(row)
	if err != nil {
		return nil, err
	}

	day := scheduling.Midnight(slot.Date)
	leaveRows, err := s.repo.Leave.ListApprovedCoveringForTechnician(ctx, technicianID, day)
	if err != nil {
		s.logger.Error("查询请假失败", zap.String("technician_id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("leave.list", err)
	}
	apptRows, err := s.repo.Appointment.ListOpenByTechnicianOnDate(ctx, technicianID, day)
	if err != nil {
		s.logger.Error("查询预约失败", zap.String("technician_id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.list", err)
	}
	leaves, err := mapLeaves(leaveRows)
	if err != nil {
		return nil, err
	}
	appts, err := mapAppointments(apptRows)
	if err != nil {
		return nil, err
	}

	reasons := scheduling.Evaluate(tech, slot, leaves, appts)
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, string(r))
	}

	return &dto.EvaluationResponse{
		TechnicianID: technicianID,
		Available:    len(out) == 0,
		Reasons:      out,
	}, nil
}

// ════════════════════════════════════════════════════════════
// 共享：加载快照并计算候选（改派流程复用）
// ════════════════════════════════════════════════════════════

// loadSnapshot 读取 day 当天判定所需的全部数据
func loadSnapshot(ctx context.Context, repo *repository.Repository, slot scheduling.Slot) (scheduling.Snapshot, error) {
	techRows, err := repo.Technician.List(ctx, true)
	if err != nil {
		return scheduling.Snapshot{}, pkgerrors.NewDataAccessError("technician.list", err)
	}
	day := scheduling.Midnight(slot.Date)
	leaveRows, err := repo.Leave.ListApprovedCovering(ctx, day)
	if err != nil {
		return scheduling.Snapshot{}, pkgerrors.NewDataAccessError("leave.list", err)
	}
	apptRows, err := repo.Appointment.ListOpenOnDate(ctx, day)
	if err != nil {
		return scheduling.Snapshot{}, pkgerrors.NewDataAccessError("appointment.list", err)
	}

	techs, err := mapTechnicians(techRows)
	if err != nil {
		return scheduling.Snapshot{}, err
	}
	leaves, err := mapLeaves(leaveRows)
	if err != nil {
		return scheduling.Snapshot{}, err
	}
	appts, err := mapAppointments(apptRows)
	if err != nil {
		return scheduling.Snapshot{}, err
	}
	return scheduling.Snapshot{Technicians: techs, Leaves: leaves, Appointments: appts}, nil
}

// findCandidates ignoreAppointmentID 非空时，该预约本身不占用任何人的当天
func findCandidates(ctx context.Context, repo *repository.Repository, slot scheduling.Slot, excludeID, ignoreAppointmentID string) ([]scheduling.Candidate, error) {
	snap, err := loadSnapshot(ctx, repo, slot)
	if err != nil {
		return nil, err
	}
	if ignoreAppointmentID != "" {
		kept := snap.Appointments[:0]
		for _, a := range snap.Appointments {
			if a.ID != ignoreAppointmentID {
				kept = append(kept, a)
			}
		}
		snap.Appointments = kept
	}
	return scheduling.FindCandidates(slot, snap, excludeID), nil
}

// isTechnicianFree 提交前的二次确认：重新读取该技术员当天的请假与预约
// ignoreAppointmentID 为正在改派的预约本身
func isTechnicianFree(ctx context.Context, repo *repository.Repository, technicianID string, slot scheduling.Slot, ignoreAppointmentID string) (bool, error) {
	day := scheduling.Midnight(slot.Date)
	leaveRows, err := repo.Leave.ListApprovedCoveringForTechnician(ctx, technicianID, day)
	if err != nil {
		return false, pkgerrors.NewDataAccessError("leave.list", err)
	}
	apptRows, err := repo.Appointment.ListOpenByTechnicianOnDate(ctx, technicianID, day)
	if err != nil {
		return false, pkgerrors.NewDataAccessError("appointment.list", err)
	}
	leaves, err := mapLeaves(leaveRows)
	if err != nil {
		return false, err
	}
	appts, err := mapAppointments(apptRows)
	if err != nil {
		return false, err
	}
	return scheduling.IsFree(technicianID, slot, leaves, appts, ignoreAppointmentID), nil
}
