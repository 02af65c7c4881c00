package repository

import (
	"context"

	"gorm.io/gorm"

	"fieldops/backend/internal/model"
)

// TimelineRepository 项目时间线数据访问接口（只追加）
type TimelineRepository interface {
	Append(ctx context.Context, e *model.ProjectTimelineEntry) error
	// ListByProject 按时间倒序（最新在前）
	ListByProject(ctx context.Context, projectID string) ([]model.ProjectTimelineEntry, error)
	// Latest 最新一条；没有记录时返回 gorm.ErrRecordNotFound
	Latest(ctx context.Context, projectID string) (*model.ProjectTimelineEntry, error)
}

type timelineRepo struct {
	db *gorm.DB
}

// NewTimelineRepo 创建 TimelineRepository 实例
func NewTimelineRepo(db *gorm.DB) TimelineRepository {
	return &timelineRepo{db: db}
}

func (r *timelineRepo) Append(ctx context.Context, e *model.ProjectTimelineEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *timelineRepo) ListByProject(ctx context.Context, projectID string) ([]model.ProjectTimelineEntry, error) {
	var entries []model.ProjectTimelineEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, entry_id DESC").
		Find(&entries).Error
	return entries, err
}

func (r *timelineRepo) Latest(ctx context.Context, projectID string) (*model.ProjectTimelineEntry, error) {
	var e model.ProjectTimelineEntry
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}
