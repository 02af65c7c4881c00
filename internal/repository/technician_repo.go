package repository

import (
	"context"

	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	pkgerrors "fieldops/backend/pkg/errors"
)

// TechnicianRepository 技术员数据访问接口
type TechnicianRepository interface {
	Create(ctx context.Context, t *model.Technician) error
	GetByID(ctx context.Context, id string) (*model.Technician, error)
	GetByUserID(ctx context.Context, userID string) (*model.Technician, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Technician, error)
	// List activeOnly 为 true 时只返回在职技术员；结果按 technician_id 升序
	List(ctx context.Context, activeOnly bool) ([]model.Technician, error)
	Update(ctx context.Context, t *model.Technician) error
	UpdateAvailability(ctx context.Context, id, status, updatedBy string) error
}

type technicianRepo struct {
	db *gorm.DB
}

// NewTechnicianRepo 创建 TechnicianRepository 实例
func NewTechnicianRepo(db *gorm.DB) TechnicianRepository {
	return &technicianRepo{db: db}
}

func (r *technicianRepo) Create(ctx context.Context, t *model.Technician) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *technicianRepo) GetByID(ctx context.Context, id string) (*model.Technician, error) {
	var t model.Technician
	err := r.db.WithContext(ctx).Where("technician_id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *technicianRepo) GetByUserID(ctx context.Context, userID string) (*model.Technician, error) {
	var t model.Technician
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *technicianRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Technician, error) {
	var techs []model.Technician
	if len(ids) == 0 {
		return techs, nil
	}
	err := r.db.WithContext(ctx).
		Where("technician_id IN ?", ids).
		Order("technician_id ASC").
		Find(&techs).Error
	return techs, err
}

func (r *technicianRepo) List(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	var techs []model.Technician
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Order("technician_id ASC").Find(&techs).Error
	return techs, err
}

// Update 乐观锁更新：version 不匹配时返回 ErrOptimisticLock
func (r *technicianRepo) Update(ctx context.Context, t *model.Technician) error {
	oldVersion := t.Version
	result := r.db.WithContext(ctx).
		Model(&model.Technician{}).
		Where("technician_id = ? AND version = ?", t.TechnicianID, oldVersion).
		Updates(map[string]interface{}{
			"name":                t.Name,
			"email":               t.Email,
			"phone":               t.Phone,
			"active":              t.Active,
			"availability_status": t.AvailabilityStatus,
			"work_start":          t.WorkStart,
			"work_end":            t.WorkEnd,
			"work_days":           t.WorkDays,
			"specialties":         t.Specialties,
			"updated_by":          t.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version = oldVersion + 1
	return nil
}

// UpdateAvailability 只翻转可用状态，不参与乐观锁（请假审批的附带动作）
func (r *technicianRepo) UpdateAvailability(ctx context.Context, id, status, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Technician{}).
		Where("technician_id = ?", id).
		Updates(map[string]interface{}{
			"availability_status": status,
			"updated_by":          updatedBy,
			"version":             gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
