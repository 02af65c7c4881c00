package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// AppointmentRepository 预约数据访问接口
//
// "未结"指状态不是 cancelled / completed 的预约，它们按日占用技术员。
type AppointmentRepository interface {
	Create(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	// GetOpenByProject 项目最近一条未结预约
	GetOpenByProject(ctx context.Context, projectID string) (*model.Appointment, error)
	ListOpenOnDate(ctx context.Context, day time.Time) ([]model.Appointment, error)
	ListOpenByTechnicianOnDate(ctx context.Context, technicianID string, day time.Time) ([]model.Appointment, error)
	// ListOpenByTechnicianBetween [from, to] 区间内的未结预约，按日期、时刻升序
	ListOpenByTechnicianBetween(ctx context.Context, technicianID string, from, to time.Time) ([]model.Appointment, error)
	// ListOpenByTechnicianFrom from 当天及以后的全部未结预约
	ListOpenByTechnicianFrom(ctx context.Context, technicianID string, from time.Time) ([]model.Appointment, error)
	// ListBetween [from, to] 区间内全部预约（含技术员、项目关联），供导出使用
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	Update(ctx context.Context, a *model.Appointment) error
}

type appointmentRepo struct {
	db *gorm.DB
}

// NewAppointmentRepo 创建 AppointmentRepository 实例
func NewAppointmentRepo(db *gorm.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).Where("appointment_id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepo) GetOpenByProject(ctx context.Context, projectID string) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status NOT IN ?", projectID, scheduling.ClosedAppointmentStatuses).
		Order("scheduled_date DESC, created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepo) ListOpenOnDate(ctx context.Context, day time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("scheduled_date = ? AND status NOT IN ?", datatypes.Date(day), scheduling.ClosedAppointmentStatuses).
		Order("technician_id ASC, scheduled_time ASC").
		Find(&appts).Error
	return appts, err
}

func (r *appointmentRepo) ListOpenByTechnicianOnDate(ctx context.Context, technicianID string, day time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("technician_id = ? AND scheduled_date = ? AND status NOT IN ?",
			technicianID, datatypes.Date(day), scheduling.ClosedAppointmentStatuses).
		Find(&appts).Error
	return appts, err
}

func (r *appointmentRepo) ListOpenByTechnicianBetween(ctx context.Context, technicianID string, from, to time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("technician_id = ? AND scheduled_date >= ? AND scheduled_date <= ? AND status NOT IN ?",
			technicianID, datatypes.Date(from), datatypes.Date(to), scheduling.ClosedAppointmentStatuses).
		Order("scheduled_date ASC, scheduled_time ASC").
		Find(&appts).Error
	return appts, err
}

func (r *appointmentRepo) ListOpenByTechnicianFrom(ctx context.Context, technicianID string, from time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("technician_id = ? AND scheduled_date >= ? AND status NOT IN ?",
			technicianID, datatypes.Date(from), scheduling.ClosedAppointmentStatuses).
		Order("scheduled_date ASC, scheduled_time ASC").
		Find(&appts).Error
	return appts, err
}

func (r *appointmentRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Preload("Technician").
		Preload("Project").
		Where("scheduled_date >= ? AND scheduled_date <= ?", datatypes.Date(from), datatypes.Date(to)).
		Order("scheduled_date ASC, scheduled_time ASC").
		Find(&appts).Error
	return appts, err
}

// Update 乐观锁更新：改派与状态流转都经过这里
func (r *appointmentRepo) Update(ctx context.Context, a *model.Appointment) error {
	oldVersion := a.Version
	result := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("appointment_id = ? AND version = ?", a.AppointmentID, oldVersion).
		Updates(map[string]interface{}{
			"technician_id":  a.TechnicianID,
			"scheduled_date": a.ScheduledDate,
			"scheduled_time": a.ScheduledTime,
			"status":         a.Status,
			"notes":          a.Notes,
			"updated_by":     a.UpdatedBy,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	a.Version = oldVersion + 1
	return nil
}
