package scheduling

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// ── 技术员 ──

// AvailabilityStatus 技术员可用状态（由请假审批/取消翻转）
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
)

// ParseAvailabilityStatus 校验并转换存储值
func ParseAvailabilityStatus(s string) (AvailabilityStatus, error) {
	switch v := AvailabilityStatus(s); v {
	case AvailabilityAvailable, AvailabilityUnavailable:
		return v, nil
	}
	return "", fmt.Errorf("未知的可用状态 %q", s)
}

// WorkingHours 每周固定的工作时间；区间为 [Start, End)
type WorkingHours struct {
	Start civil.Time
	End   civil.Time
	Days  map[time.Weekday]bool
}

// NewWorkingHours 构造工作时间，days 为 0..6（0=周日）
func NewWorkingHours(start, end civil.Time, days []int) (WorkingHours, error) {
	if clockMinutes(start) >= clockMinutes(end) {
		return WorkingHours{}, fmt.Errorf("工作开始时间 %s 必须早于结束时间 %s", FormatClock(start), FormatClock(end))
	}
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return WorkingHours{}, fmt.Errorf("无效的星期索引 %d（应为 0-6）", d)
		}
		set[time.Weekday(d)] = true
	}
	return WorkingHours{Start: start, End: end, Days: set}, nil
}

// WorksOn 该星期是否为工作日
func (w WorkingHours) WorksOn(day time.Weekday) bool {
	return w.Days[day]
}

// Covers 时刻是否落在 [Start, End)
func (w WorkingHours) Covers(t civil.Time) bool {
	m := clockMinutes(t)
	return m >= clockMinutes(w.Start) && m < clockMinutes(w.End)
}

// Technician 技术员领域实体
type Technician struct {
	ID           string
	Name         string
	Email        string
	Active       bool
	Availability AvailabilityStatus
	Hours        WorkingHours
	Specialties  []string
}

// ── 请假 ──

// LeaveType 请假类型
type LeaveType string

const (
	LeaveVacation   LeaveType = "vacation"
	LeaveSickness   LeaveType = "sickness"
	LeaveSuspension LeaveType = "suspension"
	LeaveUnplanned  LeaveType = "unplanned"
)

// ParseLeaveType 校验并转换请假类型
func ParseLeaveType(s string) (LeaveType, error) {
	switch v := LeaveType(s); v {
	case LeaveVacation, LeaveSickness, LeaveSuspension, LeaveUnplanned:
		return v, nil
	}
	return "", fmt.Errorf("未知的请假类型 %q", s)
}

// LeaveStatus 请假审批状态
type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

// ParseLeaveStatus 校验并转换请假状态
func ParseLeaveStatus(s string) (LeaveStatus, error) {
	switch v := LeaveStatus(s); v {
	case LeavePending, LeaveApproved, LeaveRejected, LeaveCancelled:
		return v, nil
	}
	return "", fmt.Errorf("未知的请假状态 %q", s)
}

// Leave 请假领域实体；Start/End 均为包含端点的日历日
type Leave struct {
	ID           string
	TechnicianID string
	Type         LeaveType
	Start        civil.Date
	End          civil.Date
	Status       LeaveStatus
}

// Blocks 该请假是否使技术员在 d 当天不可用
func (l Leave) Blocks(d civil.Date) bool {
	return l.Status == LeaveApproved && dateBetween(d, l.Start, l.End)
}

// ── 预约 ──

// Appointment 预约领域实体
type Appointment struct {
	ID           string
	ProjectID    string
	TechnicianID string
	Date         civil.Date
	Time         civil.Time
	Status       AppointmentStatus
}

// OccupiesDay 非取消、非完成的预约占用技术员当天（按日粒度，不看具体时刻）
func (a Appointment) OccupiesDay(d civil.Date) bool {
	return a.Date == d && a.Status.Open()
}

// ── 候选 ──

// Slot 待排的日期与时刻
type Slot struct {
	Date civil.Date
	Time civil.Time
}

func (s Slot) String() string {
	return FormatDate(s.Date) + " " + FormatClock(s.Time)
}

// Candidate 可接单的技术员
type Candidate struct {
	TechnicianID string
	Name         string
	Email        string
}
