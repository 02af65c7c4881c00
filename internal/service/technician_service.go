package service

import (
	"context"
	"errors"
	"fmt"
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

// ── 技术员模块业务错误 ──

var (
	ErrInvalidWorkingHours = errors.New("工作时间无效")
	ErrInvalidDateRange    = errors.New("日期区间无效")
	ErrDateRangeTooLarge   = errors.New("日期区间不能超过 366 天")
)

const maxExportDays = 366

// TechnicianService 技术员目录接口
type TechnicianService interface {
	List(ctx context.Context, req *dto.ListTechniciansRequest) ([]dto.TechnicianResponse, error)
	Get(ctx context.Context, id string) (*dto.TechnicianResponse, error)
	UpdateWorkingHours(ctx context.Context, id string, req *dto.UpdateWorkingHoursRequest, actor string) (*dto.TechnicianResponse, error)
	// SetActive 停用时对今天起的未结预约逐个自动改派，失败的项目升级为紧急改期
	SetActive(ctx context.Context, id string, req *dto.SetActiveRequest, actor string) (*dto.SetActiveResponse, error)
	// ExportCalendar 导出技术员未结预约为 iCalendar，返回内容与建议文件名
	ExportCalendar(ctx context.Context, id string, req *dto.DateRangeRequest) ([]byte, string, error)
}

type technicianService struct {
	cfg      *config.SchedulingConfig
	repo     *repository.Repository
	reassign *reassignmentService
	logger   *zap.Logger
	now      func() time.Time
}

// NewTechnicianService 创建 TechnicianService 实例
func NewTechnicianService(cfg *config.SchedulingConfig, repo *repository.Repository, reassign *reassignmentService, logger *zap.Logger) TechnicianService {
	return &technicianService{cfg: cfg, repo: repo, reassign: reassign, logger: logger, now: time.Now}
}

// ────────────────────── List ──────────────────────

func (s *technicianService) List(ctx context.Context, req *dto.ListTechniciansRequest) ([]dto.TechnicianResponse, error) {
	techs, err := s.repo.Technician.List(ctx, req.ActiveOnly)
	if err != nil {
		s.logger.Error("列出技术员失败", zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.list", err)
	}

	result := make([]dto.TechnicianResponse, 0, len(techs))
	for i := range techs {
		result = append(result, *toTechnicianResponse(&techs[i]))
	}
	return result, nil
}

// ────────────────────── Get ──────────────────────

func (s *technicianService) Get(ctx context.Context, id string) (*dto.TechnicianResponse, error) {
	t, err := s.loadTechnician(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTechnicianResponse(t), nil
}

// ────────────────────── UpdateWorkingHours ──────────────────────

func (s *technicianService) UpdateWorkingHours(ctx context.Context, id string, req *dto.UpdateWorkingHoursRequest, actor string) (*dto.TechnicianResponse, error) {
	start, err := scheduling.ParseClock(req.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkingHours, err)
	}
	end, err := scheduling.ParseClock(req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkingHours, err)
	}
	if _, err := scheduling.NewWorkingHours(start, end, req.Days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkingHours, err)
	}

	t, err := s.loadTechnician(ctx, id)
	if err != nil {
		return nil, err
	}

	t.WorkStart = scheduling.FormatClock(start)
	t.WorkEnd = scheduling.FormatClock(end)
	t.WorkDays = uniqueDays(req.Days)
	t.UpdatedBy = &actor
	if err := s.update(ctx, t); err != nil {
		return nil, err
	}

	return toTechnicianResponse(t), nil
}

// ────────────────────── SetActive ──────────────────────

func (s *technicianService) SetActive(ctx context.Context, id string, req *dto.SetActiveRequest, actor string) (*dto.SetActiveResponse, error) {
	t, err := s.loadTechnician(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.SetActiveResponse{Reassignments: []dto.ReassignmentResponse{}}
	if t.Active == *req.Active {
		resp.Technician = *toTechnicianResponse(t)
		return resp, nil
	}

	// 停用前先读出今天起的未结预约，读失败则不停用
	var appts []model.Appointment
	if !*req.Active {
		today := scheduling.DateOf(s.now(), s.cfg.Location())
		appts, err = s.repo.Appointment.ListOpenByTechnicianFrom(ctx, id, scheduling.Midnight(today))
		if err != nil {
			s.logger.Error("查询技术员未结预约失败，拒绝停用", zap.String("id", id), zap.Error(err))
			return nil, pkgerrors.NewDataAccessError("appointment.list", err)
		}
	}

	t.Active = *req.Active
	t.UpdatedBy = &actor
	if err := s.update(ctx, t); err != nil {
		return nil, err
	}
	resp.Technician = *toTechnicianResponse(t)

	for i := range appts {
		resp.Reassignments = append(resp.Reassignments, s.reassign.reassignAutomatically(ctx, &appts[i], actor, TriggerDeactivation))
	}

	s.logger.Info("技术员在职状态变更",
		zap.String("id", id),
		zap.Bool("active", t.Active),
		zap.String("actor", actor),
		zap.Int("appointments", len(appts)),
	)
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// ExportCalendar — 技术员日程 .ics
// ════════════════════════════════════════════════════════════

func (s *technicianService) ExportCalendar(ctx context.Context, id string, req *dto.DateRangeRequest) ([]byte, string, error) {
	from, to, err := parseRange(req)
	if err != nil {
		return nil, "", err
	}
	if from.AddDays(maxExportDays).Before(to) {
		return nil, "", ErrDateRangeTooLarge
	}

	t, err := s.loadTechnician(ctx, id)
	if err != nil {
		return nil, "", err
	}

	appts, err := s.repo.Appointment.ListOpenByTechnicianBetween(ctx, id, scheduling.Midnight(from), scheduling.Midnight(to))
	if err != nil {
		s.logger.Error("查询技术员预约失败", zap.String("technician_id", id), zap.Error(err))
		return nil, "", pkgerrors.NewDataAccessError("appointment.list", err)
	}

	projectIDs := make([]string, 0, len(appts))
	for _, a := range appts {
		projectIDs = append(projectIDs, a.ProjectID)
	}
	projects := make(map[string]*model.Project, len(projectIDs))
	for _, pid := range projectIDs {
		if _, ok := projects[pid]; ok {
			continue
		}
		p, err := s.repo.Project.GetByID(ctx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			s.logger.Error("查询项目失败", zap.String("project_id", pid), zap.Error(err))
			return nil, "", pkgerrors.NewDataAccessError("project.get", err)
		}
		projects[pid] = p
	}

	content := buildTechnicianCalendar(t, appts, projects, s.cfg.Location(), s.now())
	filename := fmt.Sprintf("%s_%s_%s.ics", t.Name, req.From, req.To)
	return []byte(content), filename, nil
}

// ── 内部辅助 ──

func (s *technicianService) loadTechnician(ctx context.Context, id string) (*model.Technician, error) {
	t, err := s.repo.Technician.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTechnicianNotFound
		}
		s.logger.Error("查询技术员失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("technician.get", err)
	}
	return t, nil
}

func (s *technicianService) update(ctx context.Context, t *model.Technician) error {
	if err := s.repo.Technician.Update(ctx, t); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
		s.logger.Error("更新技术员失败", zap.String("id", t.TechnicianID), zap.Error(err))
		return pkgerrors.NewDataAccessError("technician.update", err)
	}
	return nil
}

// uniqueDays 去重并升序
func uniqueDays(days []int) model.IntArray {
	var seen [7]bool
	for _, d := range days {
		seen[d] = true
	}
	out := make(model.IntArray, 0, len(days))
	for d, ok := range seen {
		if ok {
			out = append(out, d)
		}
	}
	return out
}
