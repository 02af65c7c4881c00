package dto

// ── 可用性模块 DTO ──

// FindCandidatesRequest 查询指定日期时刻的可用技术员
type FindCandidatesRequest struct {
	Date                string `json:"date"                            form:"date"                  binding:"required,isodate"`
	Time                string `json:"time"                            form:"time"                  binding:"required,hhmm"`
	ExcludeTechnicianID string `json:"exclude_technician_id,omitempty" form:"exclude_technician_id" binding:"omitempty,uuid"`
}

// EvaluateTechnicianRequest 单个技术员可用性诊断
type EvaluateTechnicianRequest struct {
	Date string `form:"date" binding:"required,isodate"`
	Time string `form:"time" binding:"required,hhmm"`
}

// ── 响应 ──

// CandidateResponse 候选技术员
type CandidateResponse struct {
	TechnicianID string `json:"technician_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
}

// CandidateListResponse 候选列表（可能为空，空列表不是错误）
type CandidateListResponse struct {
	Date       string              `json:"date"`
	Time       string              `json:"time"`
	Candidates []CandidateResponse `json:"candidates"`
	Count      int                 `json:"count"`
}

// EvaluationResponse 单个技术员的判定结果
type EvaluationResponse struct {
	TechnicianID string   `json:"technician_id"`
	Available    bool     `json:"available"`
	Reasons      []string `json:"reasons"`
}
