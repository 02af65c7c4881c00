package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Leave 技术员请假表 — 对应 technician_leaves
// StartDate/EndDate 为包含端点的日历日
type Leave struct {
	LeaveID      string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"  json:"leave_id"`
	TechnicianID string         `gorm:"type:uuid;not null;index"                        json:"technician_id"`
	LeaveType    string         `gorm:"type:varchar(20);not null"                       json:"leave_type"` // vacation | sickness | suspension | unplanned
	StartDate    datatypes.Date `gorm:"not null"                                        json:"start_date"`
	EndDate      datatypes.Date `gorm:"not null"                                        json:"end_date"`
	Status       string         `gorm:"type:varchar(20);not null;default:'pending'"     json:"status"` // pending | approved | rejected | cancelled
	Reason       string         `gorm:"type:varchar(500)"                               json:"reason,omitempty"`
	ReviewedBy   *string        `gorm:"type:uuid"                                       json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNote   string         `gorm:"type:varchar(500)"                               json:"review_note,omitempty"`
	VersionedModel

	// 关联
	Technician *Technician `gorm:"foreignKey:TechnicianID;references:TechnicianID" json:"technician,omitempty"`
}

// TableName 指定表名
func (Leave) TableName() string { return "technician_leaves" }

// BeforeCreate 补齐主键
func (l *Leave) BeforeCreate(_ *gorm.DB) error {
	newID(&l.LeaveID)
	return nil
}
