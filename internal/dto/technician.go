package dto

// ── 技术员模块 DTO ──

// ListTechniciansRequest 技术员列表查询参数
type ListTechniciansRequest struct {
	ActiveOnly bool `form:"active_only"`
}

// UpdateWorkingHoursRequest 修改每周工作时间
type UpdateWorkingHoursRequest struct {
	Start string `json:"start" binding:"required,hhmm"`
	End   string `json:"end"   binding:"required,hhmm"`
	Days  []int  `json:"days"  binding:"required,min=1,dive,min=0,max=6"`
}

// ── 响应 ──

// TechnicianResponse 技术员响应
type TechnicianResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone,omitempty"`
	Active             bool     `json:"active"`
	AvailabilityStatus string   `json:"availability_status"`
	WorkStart          string   `json:"work_start"`
	WorkEnd            string   `json:"work_end"`
	WorkDays           []int    `json:"work_days"`
	Specialties        []string `json:"specialties"`
	Version            int      `json:"version"`
}

// SetActiveRequest 启用/停用技术员
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActiveResponse 停用时附带其未结预约的自动改派明细
type SetActiveResponse struct {
	Technician    TechnicianResponse     `json:"technician"`
	Reassignments []ReassignmentResponse `json:"reassignments"`
}
