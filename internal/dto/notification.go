package dto

// ── 通知模块 DTO ──

const (
	notificationPageSize    = 20
	notificationMaxPageSize = 100
)

// NotificationListRequest 收件箱查询：分页，可只看未读
type NotificationListRequest struct {
	Page       int  `form:"page"      binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool `form:"unread"`
}

// GetPage 页码，缺省为 1
func (r *NotificationListRequest) GetPage() int {
	if r.Page <= 0 {
		return 1
	}
	return r.Page
}

// GetPageSize 每页条数，缺省 20，最多 100
func (r *NotificationListRequest) GetPageSize() int {
	switch {
	case r.PageSize <= 0:
		return notificationPageSize
	case r.PageSize > notificationMaxPageSize:
		return notificationMaxPageSize
	}
	return r.PageSize
}

func (r *NotificationListRequest) GetOffset() int {
	return (r.GetPage() - 1) * r.GetPageSize()
}

// NotificationResponse 站内通知
type NotificationResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Link      *string `json:"link,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at"`
}
