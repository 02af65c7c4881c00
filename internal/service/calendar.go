package service

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"fieldops/backend/internal/model"
	"fieldops/backend/internal/scheduling"
)

// 单次上门在日历中的默认时长
const visitDuration = 2 * time.Hour

// buildTechnicianCalendar 生成技术员日程（RFC 5545）
// 预约时刻是 loc 时区的墙上时间，写出时统一转为 UTC
func buildTechnicianCalendar(t *model.Technician, appts []model.Appointment, projects map[string]*model.Project, loc *time.Location, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//fieldops//technician schedule//ZH")
	cal.SetXWRCalName(t.Name + " 上门日程")

	for i := range appts {
		a := &appts[i]
		start, err := appointmentStart(a, loc)
		if err != nil {
			continue
		}

		event := cal.AddEvent(a.AppointmentID + "@fieldops")
		event.SetDtStampTime(now.UTC())
		event.SetModifiedAt(a.UpdatedAt.UTC())
		event.SetStartAt(start)
		event.SetEndAt(start.Add(visitDuration))
		event.SetStatus(ics.ObjectStatusConfirmed)

		summary := "安装预约"
		if p, ok := projects[a.ProjectID]; ok {
			summary = fmt.Sprintf("安装：%s（%s）", p.Name, p.ClientName)
			if p.Address != "" {
				event.SetLocation(p.Address)
			}
		}
		event.SetSummary(summary)
		if a.Notes != "" {
			event.SetDescription(a.Notes)
		}
	}

	return cal.Serialize()
}

func appointmentStart(a *model.Appointment, loc *time.Location) (time.Time, error) {
	clock, err := scheduling.ParseClock(a.ScheduledTime)
	if err != nil {
		return time.Time{}, err
	}
	day := civilDate(a.ScheduledDate)
	return time.Date(day.Year, day.Month, day.Day, clock.Hour, clock.Minute, 0, 0, loc), nil
}
