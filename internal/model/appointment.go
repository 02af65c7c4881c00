package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Appointment 安装预约表 — 对应 appointments
// 预约是技术员指派的权威来源；projects.assigned_to[0] 只是冗余缓存
type Appointment struct {
	AppointmentID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"  json:"appointment_id"`
	ProjectID     string         `gorm:"type:uuid;not null;index"                        json:"project_id"`
	TechnicianID  string         `gorm:"type:uuid;not null;index"                        json:"technician_id"`
	ScheduledDate datatypes.Date `gorm:"not null;index"                                  json:"scheduled_date"`
	ScheduledTime string         `gorm:"type:varchar(5);not null"                        json:"scheduled_time"` // HH:MM
	Status        string         `gorm:"type:varchar(20);not null;default:'scheduled'"   json:"status"`         // scheduled | on_route | in_progress | completed | cancelled | incomplete
	Notes         string         `gorm:"type:text"                                       json:"notes,omitempty"`
	VersionedModel

	// 关联
	Technician *Technician `gorm:"foreignKey:TechnicianID;references:TechnicianID" json:"technician,omitempty"`
	Project    *Project    `gorm:"foreignKey:ProjectID;references:ProjectID"       json:"project,omitempty"`
}

// TableName 指定表名
func (Appointment) TableName() string { return "appointments" }

// BeforeCreate 补齐主键
func (a *Appointment) BeforeCreate(_ *gorm.DB) error {
	newID(&a.AppointmentID)
	return nil
}
