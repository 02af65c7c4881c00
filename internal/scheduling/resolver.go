package scheduling

import (
	"sort"
)

// Reason 技术员不能作为候选的原因
type Reason string

const (
	ReasonInactive     Reason = "inactive"
	ReasonExcluded     Reason = "excluded"
	ReasonOffDay       Reason = "off_day"
	ReasonOutsideHours Reason = "outside_hours"
	ReasonOnLeave      Reason = "on_leave"
	ReasonDayOccupied  Reason = "day_occupied"
)

// Snapshot 一次判定所需的数据快照
// Leaves 与 Appointments 可以只包含与目标日期相关的记录，也可以是全量
type Snapshot struct {
	Technicians  []Technician
	Leaves       []Leave
	Appointments []Appointment
}

// FindCandidates 返回在 slot 可接单的技术员，按技术员 ID 升序
//
// 过滤顺序：
//  1. 在职且不是被排除的技术员
//  2. slot 的星期在工作日内，且时刻落在 [start, end)
//  3. 没有覆盖该日期的已批准请假（两端包含）
//  4. 当天没有未取消、未完成的预约（按日粒度）
//
// 没有任何人满足条件时返回空切片而非 nil。
func FindCandidates(slot Slot, snap Snapshot, excludeID string) []Candidate {
	onLeave := leaveIndex(slot, snap.Leaves)
	busy := occupiedIndex(slot, snap.Appointments)

	techs := make([]Technician, len(snap.Technicians))
	copy(techs, snap.Technicians)
	sort.SliceStable(techs, func(i, j int) bool { return techs[i].ID < techs[j].ID })

	result := make([]Candidate, 0, len(techs))
	for _, t := range techs {
		if firstReason(t, slot, excludeID, onLeave, busy) != "" {
			continue
		}
		result = append(result, Candidate{TechnicianID: t.ID, Name: t.Name, Email: t.Email})
	}
	return result
}

// Evaluate 返回单个技术员在 slot 上不满足的全部条件；为空表示可用
func Evaluate(t Technician, slot Slot, leaves []Leave, appts []Appointment) []Reason {
	onLeave := leaveIndex(slot, leaves)
	busy := occupiedIndex(slot, appts)

	var reasons []Reason
	if !t.Active {
		reasons = append(reasons, ReasonInactive)
	}
	if !t.Hours.WorksOn(Weekday(slot.Date)) {
		reasons = append(reasons, ReasonOffDay)
	}
	if !t.Hours.Covers(slot.Time) {
		reasons = append(reasons, ReasonOutsideHours)
	}
	if onLeave[t.ID] {
		reasons = append(reasons, ReasonOnLeave)
	}
	if busy[t.ID] {
		reasons = append(reasons, ReasonDayOccupied)
	}
	return reasons
}

// IsFree 技术员在 slot 当天是否仍无请假、无占用（提交前的乐观复核）
func IsFree(technicianID string, slot Slot, leaves []Leave, appts []Appointment, ignoreAppointmentID string) bool {
	for _, l := range leaves {
		if l.TechnicianID == technicianID && l.Blocks(slot.Date) {
			return false
		}
	}
	for _, a := range appts {
		if a.ID == ignoreAppointmentID {
			continue
		}
		if a.TechnicianID == technicianID && a.OccupiesDay(slot.Date) {
			return false
		}
	}
	return true
}

func firstReason(t Technician, slot Slot, excludeID string, onLeave, busy map[string]bool) Reason {
	switch {
	case !t.Active:
		return ReasonInactive
	case excludeID != "" && t.ID == excludeID:
		return ReasonExcluded
	case !t.Hours.WorksOn(Weekday(slot.Date)):
		return ReasonOffDay
	case !t.Hours.Covers(slot.Time):
		return ReasonOutsideHours
	case onLeave[t.ID]:
		return ReasonOnLeave
	case busy[t.ID]:
		return ReasonDayOccupied
	}
	return ""
}

func leaveIndex(slot Slot, leaves []Leave) map[string]bool {
	idx := make(map[string]bool)
	for _, l := range leaves {
		if l.Blocks(slot.Date) {
			idx[l.TechnicianID] = true
		}
	}
	return idx
}

func occupiedIndex(slot Slot, appts []Appointment) map[string]bool {
	idx := make(map[string]bool)
	for _, a := range appts {
		if a.OccupiesDay(slot.Date) {
			idx[a.TechnicianID] = true
		}
	}
	return idx
}
