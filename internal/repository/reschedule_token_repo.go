package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"fieldops/backend/internal/model"
)

// RescheduleTokenRepository 改期链接令牌数据访问接口
type RescheduleTokenRepository interface {
	Create(ctx context.Context, t *model.RescheduleToken) error
	// ListUsable 未使用且在 now 之后才过期的令牌
	ListUsable(ctx context.Context, appointmentID string, now time.Time) ([]model.RescheduleToken, error)
	MarkUsed(ctx context.Context, tokenID string, at time.Time) error
}

type rescheduleTokenRepo struct {
	db *gorm.DB
}

// NewRescheduleTokenRepo 创建 RescheduleTokenRepository 实例
func NewRescheduleTokenRepo(db *gorm.DB) RescheduleTokenRepository {
	return &rescheduleTokenRepo{db: db}
}

func (r *rescheduleTokenRepo) Create(ctx context.Context, t *model.RescheduleToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *rescheduleTokenRepo) ListUsable(ctx context.Context, appointmentID string, now time.Time) ([]model.RescheduleToken, error) {
	var tokens []model.RescheduleToken
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND used_at IS NULL AND expires_at > ?", appointmentID, now).
		Order("created_at DESC").
		Find(&tokens).Error
	return tokens, err
}

func (r *rescheduleTokenRepo) MarkUsed(ctx context.Context, tokenID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.RescheduleToken{}).
		Where("token_id = ? AND used_at IS NULL", tokenID).
		Update("used_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
