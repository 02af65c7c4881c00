// Package scheduling 排程领域模型：技术员可用性判定与项目/预约状态机。
//
// 本包不做任何 IO，所有输入由 service 层通过映射层从数据库行转换而来。
// 日期使用 civil.Date（无时区的日历日），时刻使用 civil.Time（HH:MM 精度）。
package scheduling

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("无效日期 %q: %w", s, err)
	}
	return d, nil
}

// ParseClock 解析 HH:MM（24 小时制）
func ParseClock(s string) (civil.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return civil.Time{}, fmt.Errorf("无效时间 %q: %w", s, err)
	}
	return civil.Time{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// FormatClock 输出 HH:MM
func FormatClock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// FormatDate 输出 YYYY-MM-DD
func FormatDate(d civil.Date) string {
	return d.In(time.UTC).Format(dateLayout)
}

// Weekday 返回日历日对应的星期（0=周日 … 6=周六）
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// DateOf 取 t 在 loc 时区下的日历日
func DateOf(t time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(t.In(loc))
}

// Midnight 返回日历日 00:00 UTC，用于落库
func Midnight(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// clockMinutes 将时刻折算为当日分钟数，比较时忽略秒
func clockMinutes(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

// dateBetween 判断 start <= d <= end（两端包含）
func dateBetween(d, start, end civil.Date) bool {
	return !d.Before(start) && !d.After(end)
}
