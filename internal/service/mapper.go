package service

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"gorm.io/datatypes"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 数据库行 → 领域类型 ──
//
// 存储中出现无法识别的状态/时间等值时，按数据访问错误处理，
// 不让脏数据悄悄改变判定结果。

func toDomainTechnician(m *model.Technician) (scheduling.Technician, error) {
	start, err := scheduling.ParseClock(m.WorkStart)
	if err != nil {
		return scheduling.Technician{}, corrupt("technician", m.TechnicianID, err)
	}
	end, err := scheduling.ParseClock(m.WorkEnd)
	if err != nil {
		return scheduling.Technician{}, corrupt("technician", m.TechnicianID, err)
	}
	hours, err := scheduling.NewWorkingHours(start, end, m.WorkDays)
	if err != nil {
		return scheduling.Technician{}, corrupt("technician", m.TechnicianID, err)
	}
	avail, err := scheduling.ParseAvailabilityStatus(m.AvailabilityStatus)
	if err != nil {
		return scheduling.Technician{}, corrupt("technician", m.TechnicianID, err)
	}
	return scheduling.Technician{
		ID:           m.TechnicianID,
		Name:         m.Name,
		Email:        m.Email,
		Active:       m.Active,
		Availability: avail,
		Hours:        hours,
		Specialties:  []string(m.Specialties),
	}, nil
}

func toDomainLeave(m *model.Leave) (scheduling.Leave, error) {
	typ, err := scheduling.ParseLeaveType(m.LeaveType)
	if err != nil {
		return scheduling.Leave{}, corrupt("leave", m.LeaveID, err)
	}
	status, err := scheduling.ParseLeaveStatus(m.Status)
	if err != nil {
		return scheduling.Leave{}, corrupt("leave", m.LeaveID, err)
	}
	return scheduling.Leave{
		ID:           m.LeaveID,
		TechnicianID: m.TechnicianID,
		Type:         typ,
		Start:        civilDate(m.StartDate),
		End:          civilDate(m.EndDate),
		Status:       status,
	}, nil
}

func toDomainAppointment(m *model.Appointment) (scheduling.Appointment, error) {
	status, err := scheduling.ParseAppointmentStatus(m.Status)
	if err != nil {
		return scheduling.Appointment{}, corrupt("appointment", m.AppointmentID, err)
	}
	clock, err := scheduling.ParseClock(m.ScheduledTime)
	if err != nil {
		return scheduling.Appointment{}, corrupt("appointment", m.AppointmentID, err)
	}
	return scheduling.Appointment{
		ID:           m.AppointmentID,
		ProjectID:    m.ProjectID,
		TechnicianID: m.TechnicianID,
		Date:         civilDate(m.ScheduledDate),
		Time:         clock,
		Status:       status,
	}, nil
}

func mapTechnicians(rows []model.Technician) ([]scheduling.Technician, error) {
	out := make([]scheduling.Technician, 0, len(rows))
	for i := range rows {
		t, err := toDomainTechnician(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func mapLeaves(rows []model.Leave) ([]scheduling.Leave, error) {
	out := make([]scheduling.Leave, 0, len(rows))
	for i := range rows {
		l, err := toDomainLeave(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func mapAppointments(rows []model.Appointment) ([]scheduling.Appointment, error) {
	out := make([]scheduling.Appointment, 0, len(rows))
	for i := range rows {
		a, err := toDomainAppointment(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func corrupt(kind, id string, err error) error {
	return pkgerrors.NewDataAccessError("map."+kind, fmt.Errorf("记录 %s 数据异常: %w", id, err))
}

// ── 日期转换 ──

func civilDate(d datatypes.Date) civil.Date {
	return civil.DateOf(time.Time(d).UTC())
}

func dbDate(d civil.Date) datatypes.Date {
	return datatypes.Date(scheduling.Midnight(d))
}

func formatDBDate(d datatypes.Date) string {
	return scheduling.FormatDate(civilDate(d))
}

// parseSlot 解析请求中的日期与时刻
func parseSlot(date, clock string) (scheduling.Slot, error) {
	d, err := scheduling.ParseDate(date)
	if err != nil {
		return scheduling.Slot{}, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	c, err := scheduling.ParseClock(clock)
	if err != nil {
		return scheduling.Slot{}, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	return scheduling.Slot{Date: d, Time: c}, nil
}

// parseRange 解析 [from, to] 日期区间
func parseRange(req *dto.DateRangeRequest) (civil.Date, civil.Date, error) {
	from, err := scheduling.ParseDate(req.From)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
	}
	to, err := scheduling.ParseDate(req.To)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: %v", ErrInvalidDateRange, err)
	}
	if to.Before(from) {
		return civil.Date{}, civil.Date{}, ErrInvalidDateRange
	}
	return from, to, nil
}

// ── 模型 → 响应 ──

func toTechnicianResponse(t *model.Technician) *dto.TechnicianResponse {
	days := []int(t.WorkDays)
	if days == nil {
		days = []int{}
	}
	specialties := []string(t.Specialties)
	if specialties == nil {
		specialties = []string{}
	}
	return &dto.TechnicianResponse{
		ID:                 t.TechnicianID,
		Name:               t.Name,
		Email:              t.Email,
		Phone:              t.Phone,
		Active:             t.Active,
		AvailabilityStatus: t.AvailabilityStatus,
		WorkStart:          t.WorkStart,
		WorkEnd:            t.WorkEnd,
		WorkDays:           days,
		Specialties:        specialties,
		Version:            t.Version,
	}
}

func toProjectResponse(p *model.Project) *dto.ProjectResponse {
	assigned := []string(p.AssignedTo)
	if assigned == nil {
		assigned = []string{}
	}
	resp := &dto.ProjectResponse{
		ID:            p.ProjectID,
		Name:          p.Name,
		ClientName:    p.ClientName,
		ClientEmail:   p.ClientEmail,
		Address:       p.Address,
		Status:        p.Status,
		Progress:      p.Progress,
		AssignedTo:    assigned,
		ScheduledTime: p.ScheduledTime,
		Version:       p.Version,
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.ScheduledDate != nil {
		d := formatDBDate(*p.ScheduledDate)
		resp.ScheduledDate = &d
	}
	return resp
}

func toAppointmentResponse(a *model.Appointment) *dto.AppointmentResponse {
	return &dto.AppointmentResponse{
		ID:            a.AppointmentID,
		ProjectID:     a.ProjectID,
		TechnicianID:  a.TechnicianID,
		ScheduledDate: formatDBDate(a.ScheduledDate),
		ScheduledTime: a.ScheduledTime,
		Status:        a.Status,
		Notes:         a.Notes,
		Version:       a.Version,
	}
}

func toLeaveResponse(l *model.Leave) *dto.LeaveResponse {
	resp := &dto.LeaveResponse{
		ID:           l.LeaveID,
		TechnicianID: l.TechnicianID,
		LeaveType:    l.LeaveType,
		StartDate:    formatDBDate(l.StartDate),
		EndDate:      formatDBDate(l.EndDate),
		Status:       l.Status,
		Reason:       l.Reason,
		ReviewedBy:   l.ReviewedBy,
		ReviewNote:   l.ReviewNote,
	}
	if l.ReviewedAt != nil {
		at := l.ReviewedAt.UTC().Format(time.RFC3339)
		resp.ReviewedAt = &at
	}
	return resp
}

func toTimelineResponse(e *model.ProjectTimelineEntry) dto.TimelineEntryResponse {
	var details json.RawMessage
	if len(e.Details) > 0 {
		details = json.RawMessage(e.Details)
	}
	return dto.TimelineEntryResponse{
		ID:          e.EntryID,
		Actor:       e.Actor,
		Kind:        e.Kind,
		Description: e.Description,
		Details:     details,
		Timestamp:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.NotificationID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
