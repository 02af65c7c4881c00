package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
)

// 时间线条目类型
const (
	TimelineStatusChange = "status_change"
	TimelineAssignment   = "assignment"
	TimelineReassignment = "reassignment"
	TimelineProgress     = "progress"
	TimelineEscalation   = "escalation"
	TimelineAppointment  = "appointment"
)

// timelineEntry 待追加的时间线条目
type timelineEntry struct {
	Actor       string
	Kind        string
	Description string
	Details     map[string]interface{}
}

// appendTimeline 追加一条时间线；时间戳不早于该项目已有的最新条目
func appendTimeline(ctx context.Context, tx *repository.Repository, projectID string, now time.Time, e timelineEntry) error {
	ts := now.UTC()
	latest, err := tx.Timeline.Latest(ctx, projectID)
	switch {
	case err == nil:
		if !ts.After(latest.CreatedAt) {
			ts = latest.CreatedAt.Add(time.Microsecond)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return err
	}

	var details datatypes.JSON
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = datatypes.JSON(raw)
	}

	return tx.Timeline.Append(ctx, &model.ProjectTimelineEntry{
		ProjectID:   projectID,
		Actor:       e.Actor,
		Kind:        e.Kind,
		Description: e.Description,
		Details:     details,
		CreatedAt:   ts,
	})
}

// commitProject 在同一事务内更新项目（乐观锁）并追加时间线
func commitProject(ctx context.Context, repo *repository.Repository, p *model.Project, now time.Time, e timelineEntry) error {
	return repo.Tx.WithinTransaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Project.Update(ctx, p); err != nil {
			return err
		}
		return appendTimeline(ctx, tx, p.ProjectID, now, e)
	})
}
