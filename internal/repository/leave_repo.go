package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	pkgerrors "fieldops/backend/pkg/errors"
)

// LeaveRepository 请假数据访问接口
type LeaveRepository interface {
	Create(ctx context.Context, l *model.Leave) error
	GetByID(ctx context.Context, id string) (*model.Leave, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]model.Leave, error)
	// ListApprovedCovering 覆盖 day 的已批准请假（start_date <= day <= end_date）
	ListApprovedCovering(ctx context.Context, day time.Time) ([]model.Leave, error)
	ListApprovedCoveringForTechnician(ctx context.Context, technicianID string, day time.Time) ([]model.Leave, error)
	Update(ctx context.Context, l *model.Leave) error
}

type leaveRepo struct {
	db *gorm.DB
}

// NewLeaveRepo 创建 LeaveRepository 实例
func NewLeaveRepo(db *gorm.DB) LeaveRepository {
	return &leaveRepo{db: db}
}

func (r *leaveRepo) Create(ctx context.Context, l *model.Leave) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *leaveRepo) GetByID(ctx context.Context, id string) (*model.Leave, error) {
	var l model.Leave
	err := r.db.WithContext(ctx).Where("leave_id = ?", id).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *leaveRepo) ListByTechnician(ctx context.Context, technicianID string) ([]model.Leave, error) {
	var leaves []model.Leave
	err := r.db.WithContext(ctx).
		Where("technician_id = ?", technicianID).
		Order("start_date DESC").
		Find(&leaves).Error
	return leaves, err
}

func (r *leaveRepo) ListApprovedCovering(ctx context.Context, day time.Time) ([]model.Leave, error) {
	var leaves []model.Leave
	d := datatypes.Date(day)
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", "approved", d, d).
		Order("technician_id ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *leaveRepo) ListApprovedCoveringForTechnician(ctx context.Context, technicianID string, day time.Time) ([]model.Leave, error) {
	var leaves []model.Leave
	d := datatypes.Date(day)
	err := r.db.WithContext(ctx).
		Where("technician_id = ? AND status = ? AND start_date <= ? AND end_date >= ?", technicianID, "approved", d, d).
		Find(&leaves).Error
	return leaves, err
}

// Update 乐观锁更新审批字段
func (r *leaveRepo) Update(ctx context.Context, l *model.Leave) error {
	oldVersion := l.Version
	result := r.db.WithContext(ctx).
		Model(&model.Leave{}).
		Where("leave_id = ? AND version = ?", l.LeaveID, oldVersion).
		Updates(map[string]interface{}{
			"status":      l.Status,
			"reason":      l.Reason,
			"reviewed_by": l.ReviewedBy,
			"reviewed_at": l.ReviewedAt,
			"review_note": l.ReviewNote,
			"updated_by":  l.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	l.Version = oldVersion + 1
	return nil
}
