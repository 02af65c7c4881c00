package dto

// ── 预约模块 DTO ──

// CreateAppointmentRequest 创建预约
type CreateAppointmentRequest struct {
	ProjectID    string `json:"project_id"    binding:"required,uuid"`
	TechnicianID string `json:"technician_id" binding:"required,uuid"`
	Date         string `json:"date"          binding:"required,isodate"`
	Time         string `json:"time"          binding:"required,hhmm"`
	Notes        string `json:"notes"         binding:"omitempty,max=2000"`
}

// ChangeAppointmentStatusRequest 预约状态流转
type ChangeAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DateRangeRequest 日期区间（包含两端）
type DateRangeRequest struct {
	From string `form:"from" binding:"required,isodate"`
	To   string `form:"to"   binding:"required,isodate"`
}

// VerifyRescheduleLinkRequest 客户打开改期链接时校验令牌
type VerifyRescheduleLinkRequest struct {
	Token string `form:"token" json:"token" binding:"required"`
}

// RedeemRescheduleLinkRequest 客户通过链接提交新的日期时刻
type RedeemRescheduleLinkRequest struct {
	Token string `json:"token" binding:"required"`
	Date  string `json:"date"  binding:"required,isodate"`
	Time  string `json:"time"  binding:"required,hhmm"`
}

// ── 响应 ──

// AppointmentResponse 预约响应
type AppointmentResponse struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	TechnicianID  string `json:"technician_id"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	Version       int    `json:"version"`
}

// RescheduleLinkResponse 改期链接发送结果
// Delivered 为 false 时前端展示 Link 供人工转发
type RescheduleLinkResponse struct {
	AppointmentID string `json:"appointment_id"`
	Link          string `json:"link"`
	Delivered     bool   `json:"delivered"`
	ExpiresAt     string `json:"expires_at"`
}

// VerifyRescheduleLinkResponse 令牌校验结果
type VerifyRescheduleLinkResponse struct {
	Valid         bool   `json:"valid"`
	AppointmentID string `json:"appointment_id"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
}
