package model

import "gorm.io/gorm"

// Technician 技术员表 — 对应 technicians
type Technician struct {
	TechnicianID       string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"    json:"technician_id"`
	UserID             string      `gorm:"type:uuid;not null;uniqueIndex"                    json:"user_id"` // 登录账号，通知收件人
	Name               string      `gorm:"type:varchar(100);not null"                        json:"name"`
	Email              string      `gorm:"type:varchar(255);not null"                        json:"email"`
	Phone              string      `gorm:"type:varchar(30)"                                  json:"phone,omitempty"`
	Active             bool        `gorm:"not null"                                          json:"active"` // false 必须显式写入，不能带 GORM 默认值
	AvailabilityStatus string      `gorm:"type:varchar(20);not null;default:'available'"     json:"availability_status"` // available | unavailable
	WorkStart          string      `gorm:"type:varchar(5);not null;default:'08:00'"          json:"work_start"`          // HH:MM
	WorkEnd            string      `gorm:"type:varchar(5);not null;default:'17:00'"          json:"work_end"`            // HH:MM
	WorkDays           IntArray    `gorm:"type:smallint[];not null;default:'{1,2,3,4,5}'"    json:"work_days"`           // 0=周日 … 6=周六
	Specialties        StringArray `gorm:"type:text[]"                                       json:"specialties,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Technician) TableName() string { return "technicians" }

// BeforeCreate 补齐主键
func (t *Technician) BeforeCreate(_ *gorm.DB) error {
	newID(&t.TechnicianID)
	return nil
}
