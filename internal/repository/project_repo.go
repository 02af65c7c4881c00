package repository

import (
	"context"

	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	pkgerrors "fieldops/backend/pkg/errors"
)

// StatusCount 按状态聚合的项目数量
type StatusCount struct {
	Status string
	Count  int64
}

// ProjectRepository 项目数据访问接口
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	ListByStatus(ctx context.Context, status string) ([]model.Project, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	Update(ctx context.Context, p *model.Project) error
}

type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepo 创建 ProjectRepository 实例
func NewProjectRepo(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).Where("project_id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) ListByStatus(ctx context.Context, status string) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at DESC").
		Find(&projects).Error
	return projects, err
}

func (r *projectRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

// Update 乐观锁更新状态、进度与指派缓存
func (r *projectRepo) Update(ctx context.Context, p *model.Project) error {
	oldVersion := p.Version
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ? AND version = ?", p.ProjectID, oldVersion).
		Updates(map[string]interface{}{
			"status":         p.Status,
			"progress":       p.Progress,
			"assigned_to":    p.AssignedTo,
			"scheduled_date": p.ScheduledDate,
			"scheduled_time": p.ScheduledTime,
			"updated_by":     p.UpdatedBy,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version = oldVersion + 1
	return nil
}
