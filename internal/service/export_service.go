package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// 工作簿包含两个 Sheet：
//   - "预约明细"：区间内全部预约，每行一条
//   - "紧急改期"：当前处于 urgent_reschedule 的项目
type ExportService interface {
	ExportSchedule(ctx context.Context, req *dto.DateRangeRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

const (
	sheetAppointments = "预约明细"
	sheetUrgent       = "紧急改期"
)

var appointmentHeaders = []string{"日期", "时间", "状态", "项目", "客户", "地址", "技术员", "技术员邮箱", "备注"}

var urgentHeaders = []string{"项目", "客户", "客户邮箱", "原排期日期", "原排期时间", "原指派技术员", "更新时间"}

// ═══════════════════════════════════════════════════════════
// ExportSchedule — 导出排期为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportSchedule(ctx context.Context, req *dto.DateRangeRequest) (*bytes.Buffer, string, error) {
	from, to, err := parseRange(req)
	if err != nil {
		return nil, "", err
	}
	if from.AddDays(maxExportDays).Before(to) {
		return nil, "", ErrDateRangeTooLarge
	}

	appts, err := s.repo.Appointment.ListBetween(ctx, scheduling.Midnight(from), scheduling.Midnight(to))
	if err != nil {
		s.logger.Error("查询预约失败", zap.Error(err))
		return nil, "", pkgerrors.NewDataAccessError("appointment.list", err)
	}
	urgent, err := s.repo.Project.ListByStatus(ctx, string(scheduling.ProjectUrgentReschedule))
	if err != nil {
		s.logger.Error("查询紧急改期项目失败", zap.Error(err))
		return nil, "", pkgerrors.NewDataAccessError("project.list", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(sheetAppointments)
	f.SetActiveSheet(idx)
	f.NewSheet(sheetUrgent)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	writeHeader(f, sheetAppointments, appointmentHeaders, headerStyle)
	for i := range appts {
		writeAppointmentRow(f, i+2, &appts[i])
	}
	setWidths(f, sheetAppointments, []float64{12, 8, 12, 24, 16, 30, 14, 24, 30})

	writeHeader(f, sheetUrgent, urgentHeaders, headerStyle)
	for i := range urgent {
		writeUrgentRow(f, i+2, &urgent[i])
	}
	setWidths(f, sheetUrgent, []float64{24, 16, 24, 12, 12, 38, 20})

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("上门排期_%s_%s.xlsx", req.From, req.To)
	return buf, filename, nil
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), style)
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeAppointmentRow(f *excelize.File, row int, a *model.Appointment) {
	values := []interface{}{
		formatDBDate(a.ScheduledDate),
		a.ScheduledTime,
		a.Status,
		"", "", "",
		a.TechnicianID,
		"",
		a.Notes,
	}
	if a.Project != nil {
		values[3] = a.Project.Name
		values[4] = a.Project.ClientName
		values[5] = a.Project.Address
	}
	if a.Technician != nil {
		values[6] = a.Technician.Name
		values[7] = a.Technician.Email
	}
	for i, v := range values {
		f.SetCellValue(sheetAppointments, cell(colName(i), row), v)
	}
}

func writeUrgentRow(f *excelize.File, row int, p *model.Project) {
	date, clock := "-", "-"
	if p.ScheduledDate != nil {
		date = formatDBDate(*p.ScheduledDate)
	}
	if p.ScheduledTime != nil {
		clock = *p.ScheduledTime
	}
	values := []interface{}{
		p.Name,
		p.ClientName,
		p.ClientEmail,
		date,
		clock,
		p.AssignedTo.First(),
		p.UpdatedAt.UTC().Format(time.DateTime),
	}
	for i, v := range values {
		f.SetCellValue(sheetUrgent, cell(colName(i), row), v)
	}
}

func setWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
