package dto

// ── 请假模块 DTO ──

// CreateLeaveRequest 提交请假
type CreateLeaveRequest struct {
	TechnicianID string `json:"technician_id" binding:"required,uuid"`
	LeaveType    string `json:"leave_type"    binding:"required,oneof=vacation sickness suspension unplanned"`
	StartDate    string `json:"start_date"    binding:"required,isodate"`
	EndDate      string `json:"end_date"      binding:"required,isodate"`
	Reason       string `json:"reason"        binding:"omitempty,max=500"`
}

// RejectLeaveRequest 驳回请假
type RejectLeaveRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ── 响应 ──

// LeaveResponse 请假响应
type LeaveResponse struct {
	ID           string  `json:"id"`
	TechnicianID string  `json:"technician_id"`
	LeaveType    string  `json:"leave_type"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason,omitempty"`
	ReviewedBy   *string `json:"reviewed_by,omitempty"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
	ReviewNote   string  `json:"review_note,omitempty"`
}

// LeaveApprovalResponse 审批结果及自动改派明细
type LeaveApprovalResponse struct {
	Leave         LeaveResponse          `json:"leave"`
	Reassignments []ReassignmentResponse `json:"reassignments"`
}
