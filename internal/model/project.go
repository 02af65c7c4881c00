package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project 能源项目表 — 对应 projects
type Project struct {
	ProjectID     string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"        json:"project_id"`
	Name          string          `gorm:"type:varchar(200);not null"                            json:"name"`
	ClientName    string          `gorm:"type:varchar(200);not null"                            json:"client_name"`
	ClientEmail   string          `gorm:"type:varchar(255)"                                     json:"client_email,omitempty"`
	ClientUserID  *string         `gorm:"type:uuid"                                             json:"client_user_id,omitempty"`
	Address       string          `gorm:"type:varchar(500)"                                     json:"address,omitempty"`
	Status        string          `gorm:"type:varchar(30);not null;default:'pending_onboarding'" json:"status"`
	Progress      int             `gorm:"type:smallint;not null;default:0"                      json:"progress"` // 0-100，与状态独立
	AssignedTo    StringArray     `gorm:"type:text[]"                                           json:"assigned_to"`
	ScheduledDate *datatypes.Date `json:"scheduled_date,omitempty"`
	ScheduledTime *string         `gorm:"type:varchar(5)"                                       json:"scheduled_time,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Project) TableName() string { return "projects" }

// BeforeCreate 补齐主键
func (p *Project) BeforeCreate(_ *gorm.DB) error {
	newID(&p.ProjectID)
	return nil
}

// ProjectTimelineEntry 项目时间线表 — 对应 project_timeline_entries（只追加，不修改）
type ProjectTimelineEntry struct {
	EntryID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	ProjectID   string         `gorm:"type:uuid;not null;index"                       json:"project_id"`
	Actor       string         `gorm:"type:varchar(100);not null"                     json:"actor"`
	Kind        string         `gorm:"type:varchar(30);not null"                      json:"kind"` // status_change | assignment | reassignment | progress | escalation
	Description string         `gorm:"type:text;not null"                             json:"description"`
	Details     datatypes.JSON `json:"details,omitempty"`
	CreatedAt   time.Time      `gorm:"not null"                                       json:"created_at"`
}

// TableName 指定表名
func (ProjectTimelineEntry) TableName() string { return "project_timeline_entries" }

// BeforeCreate 补齐主键
func (e *ProjectTimelineEntry) BeforeCreate(_ *gorm.DB) error {
	newID(&e.EntryID)
	return nil
}
