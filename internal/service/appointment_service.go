package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 预约模块业务错误 ──

var (
	ErrAppointmentNotFound      = errors.New("预约不存在")
	ErrInvalidAppointmentStatus = errors.New("无效的预约状态")
	ErrAppointmentExists        = errors.New("项目已有未结预约")
	ErrTechnicianUnavailable    = errors.New("技术员当天不可用")
)

// AppointmentService 预约业务接口
type AppointmentService interface {
	Create(ctx context.Context, req *dto.CreateAppointmentRequest, actor string) (*dto.AppointmentResponse, error)
	Get(ctx context.Context, id string) (*dto.AppointmentResponse, error)
	ChangeStatus(ctx context.Context, id string, req *dto.ChangeAppointmentStatusRequest, actor string) (*dto.AppointmentResponse, error)
	ListByTechnician(ctx context.Context, technicianID string, req *dto.DateRangeRequest) ([]dto.AppointmentResponse, error)
}

type appointmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewAppointmentService 创建 AppointmentService 实例
func NewAppointmentService(repo *repository.Repository, logger *zap.Logger) AppointmentService {
	return &appointmentService{repo: repo, logger: logger, now: time.Now}
}

// ════════════════════════════════════════════════════════════
// Create — 创建预约
// ════════════════════════════════════════════════════════════
//
// 技术员必须在职，且当天没有已批准请假、没有其他未结预约。
// 预约与项目的指派缓存、时间线在同一事务内写入。

func (s *appointmentService) Create(ctx context.Context, req *dto.CreateAppointmentRequest, actor string) (*dto.AppointmentResponse, error) {
	slot, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Project.GetByID(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.String("id", req.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.get", err)
	}
	status, err := parseStoredProjectStatus(p)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, ErrProjectTerminal
	}

	if _, err := s.repo.Appointment.GetOpenByProject(ctx, p.ProjectID); err == nil {
		return nil, ErrAppointmentExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询项目预约失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.get", err)
	}

	tech, err := s.repo.Technician.GetByID(ctx, req.TechnicianID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		s.logger.Error("查询技术员失败", zap.String("id", req.TechnicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.get", err)
	}
	if !tech.Active {
		return nil, ErrTechnicianInactive
	}

	free, err := isTechnicianFree(ctx, s.repo, tech.TechnicianID, slot, "")
	if err != nil {
		s.logger.Error("校验技术员空闲失败", zap.String("technician_id", tech.TechnicianID), zap.Error(err))
		return nil, err
	}
	if !free {
		return nil, ErrTechnicianUnavailable
	}

	appt := &model.Appointment{
		ProjectID:     p.ProjectID,
		TechnicianID:  tech.TechnicianID,
		ScheduledDate: dbDate(slot.Date),
		ScheduledTime: scheduling.FormatClock(slot.Time),
		Status:        string(scheduling.AppointmentScheduled),
		Notes:         req.Notes,
	}
	appt.CreatedBy = &actor
	appt.UpdatedBy = &actor

	date := appt.ScheduledDate
	clock := appt.ScheduledTime
	err = s.repo.Tx.WithinTransaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Appointment.Create(ctx, appt); err != nil {
			return err
		}

		p.AssignedTo = withPrimary(p.AssignedTo, tech.TechnicianID)
		p.ScheduledDate = &date
		p.ScheduledTime = &clock
		p.UpdatedBy = &actor
		if err := tx.Project.Update(ctx, p); err != nil {
			return err
		}

		return appendTimeline(ctx, tx, p.ProjectID, s.now(), timelineEntry{
			Actor:       actor,
			Kind:        TimelineAppointment,
			Description: fmt.Sprintf("预约 %s 由技术员 %s 上门", slot, tech.Name),
			Details: map[string]interface{}{
				"appointment_id": appt.AppointmentID,
				"technician_id":  tech.TechnicianID,
			},
		})
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("创建预约失败", zap.String("project_id", p.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.create", err)
	}

	return toAppointmentResponse(appt), nil
}

// ────────────────────── Get ──────────────────────

func (s *appointmentService) Get(ctx context.Context, id string) (*dto.AppointmentResponse, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAppointmentResponse(appt), nil
}

// ────────────────────── ChangeStatus ──────────────────────

func (s *appointmentService) ChangeStatus(ctx context.Context, id string, req *dto.ChangeAppointmentStatusRequest, actor string) (*dto.AppointmentResponse, error) {
	to, err := scheduling.ParseAppointmentStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAppointmentStatus, req.Status)
	}

	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	from, err := scheduling.ParseAppointmentStatus(appt.Status)
	if err != nil {
		return nil, corrupt("appointment", appt.AppointmentID, err)
	}
	if err := scheduling.CheckAppointmentTransition(from, to); err != nil {
		return nil, err
	}

	appt.Status = string(to)
	appt.UpdatedBy = &actor
	if err := s.repo.Appointment.Update(ctx, appt); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新预约状态失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.update", err)
	}

	s.logger.Info("预约状态变更",
		zap.String("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)
	return toAppointmentResponse(appt), nil
}

// ────────────────────── ListByTechnician ──────────────────────

func (s *appointmentService) ListByTechnician(ctx context.Context, technicianID string, req *dto.DateRangeRequest) ([]dto.AppointmentResponse, error) {
	from, to, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Technician.GetByID(ctx, technicianID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		s.logger.Error("查询技术员失败", zap.String("id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.get", err)
	}

	appts, err := s.repo.Appointment.ListOpenByTechnicianBetween(ctx, technicianID, scheduling.Midnight(from), scheduling.Midnight(to))
	if err != nil {
		s.logger.Error("查询技术员预约失败", zap.String("technician_id", technicianID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.list", err)
	}

	result := make([]dto.AppointmentResponse, 0, len(appts))
	for i := range appts {
		result = append(result, *toAppointmentResponse(&appts[i]))
	}
	return result, nil
}

func (s *appointmentService) loadAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := s.repo.Appointment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.get", err)
	}
	return appt, nil
}
