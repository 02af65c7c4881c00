package dto

import "encoding/json"

// ── 项目模块 DTO ──

// AssignTechniciansRequest 指派技术员（有序，第一位为主技术员）
type AssignTechniciansRequest struct {
	TechnicianIDs []string `json:"technician_ids" binding:"required,min=1,dive,required,uuid"`
}

// ChangeProjectStatusRequest 常规状态修改
type ChangeProjectStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"   binding:"omitempty,max=500"`
}

// UpdateProgressRequest 更新进度（0-100）
type UpdateProgressRequest struct {
	Progress *int `json:"progress" binding:"required,min=0,max=100"`
}

// ReassignRequest 手动改派
type ReassignRequest struct {
	AppointmentID        string `json:"appointment_id,omitempty"         binding:"omitempty,uuid"`
	OutgoingTechnicianID string `json:"outgoing_technician_id,omitempty" binding:"omitempty,uuid"`
	Date                 string `json:"date,omitempty"                   binding:"omitempty,isodate"`
	Time                 string `json:"time,omitempty"                   binding:"omitempty,hhmm"`
}

// ── 响应 ──

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ClientName    string   `json:"client_name"`
	ClientEmail   string   `json:"client_email,omitempty"`
	Address       string   `json:"address,omitempty"`
	Status        string   `json:"status"`
	Progress      int      `json:"progress"`
	AssignedTo    []string `json:"assigned_to"`
	ScheduledDate *string  `json:"scheduled_date,omitempty"`
	ScheduledTime *string  `json:"scheduled_time,omitempty"`
	Version       int      `json:"version"`
	UpdatedAt     string   `json:"updated_at"`
}

// TimelineEntryResponse 时间线条目
type TimelineEntryResponse struct {
	ID          string          `json:"id"`
	Actor       string          `json:"actor"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	Details     json.RawMessage `json:"details,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// StatusCountResponse 按状态统计
type StatusCountResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// 改派结果
const (
	OutcomeReassigned   = "reassigned"
	OutcomeNoCandidates = "no_candidates"
	OutcomeEscalated    = "escalated"
	OutcomeFailed       = "failed"
)

// ReassignmentResponse 改派结果；no_candidates 是正常结果，不是错误
type ReassignmentResponse struct {
	Outcome              string `json:"outcome"`
	ProjectID            string `json:"project_id"`
	AppointmentID        string `json:"appointment_id,omitempty"`
	TechnicianID         string `json:"technician_id,omitempty"`
	TechnicianName       string `json:"technician_name,omitempty"`
	PreviousTechnicianID string `json:"previous_technician_id,omitempty"`
	ProjectStatus        string `json:"project_status"`
	Date                 string `json:"date,omitempty"`
	Time                 string `json:"time,omitempty"`
	Error                string `json:"error,omitempty"`
}
