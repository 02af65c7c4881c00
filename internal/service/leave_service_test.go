package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fieldops/backend/internal/dto"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 测试辅助 ──

// T1 申请 2025-03-17~18 请假，期间有两个预约；T2 周二已满
func setupLeaveApproval(now string) (*leaveService, *testEnv) {
	env := newTestEnv()
	env.addTechnician("T1")
	env.addTechnician("T2")
	env.addLeave("l-1", "T1", "2025-03-17", "2025-03-18", "pending")

	env.addProject("p-1", "pending_installation", "T1")
	env.addAppointment("a-1", "p-1", "T1", "2025-03-17", "10:00", "scheduled")
	env.addProject("p-2", "pending_installation", "T1")
	env.addAppointment("a-2", "p-2", "T1", "2025-03-18", "09:00", "scheduled")
	env.addProject("p-3", "pending_installation", "T2")
	env.addAppointment("a-3", "p-3", "T2", "2025-03-18", "13:00", "scheduled")

	svc := env.service().Leave.(*leaveService)
	svc.now = fixedClock(now)
	return svc, env
}

func outcomesByAppointment(list []dto.ReassignmentResponse) map[string]dto.ReassignmentResponse {
	out := make(map[string]dto.ReassignmentResponse, len(list))
	for _, r := range list {
		out[r.AppointmentID] = r
	}
	return out
}

// ── Approve ──

func TestLeaveService_Approve_AutoReassign(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-16T09:00:00Z")

	resp, err := svc.Approve(context.Background(), "l-1", "admin-1")
	if err != nil {
		t.Fatalf("Approve 应成功: %v", err)
	}
	if resp.Leave.Status != "approved" {
		t.Errorf("期望 approved，实际 %s", resp.Leave.Status)
	}
	if env.techs.techs["T1"].AvailabilityStatus != "unavailable" {
		t.Error("批准后技术员应标记为 unavailable")
	}
	if len(resp.Reassignments) != 2 {
		t.Fatalf("期望处理 2 个预约，实际 %d", len(resp.Reassignments))
	}

	got := outcomesByAppointment(resp.Reassignments)
	if r := got["a-1"]; r.Outcome != dto.OutcomeReassigned || r.TechnicianID != "T2" {
		t.Errorf("a-1 应改派给 T2，实际 %+v", r)
	}
	if r := got["a-2"]; r.Outcome != dto.OutcomeNoCandidates {
		t.Errorf("a-2 应没有候选人，实际 %+v", r)
	}
	if env.projects.projects["p-2"].Status != "urgent_reschedule" {
		t.Errorf("p-2 应转为紧急改期，实际 %s", env.projects.projects["p-2"].Status)
	}
	if env.projects.projects["p-1"].AssignedTo.First() != "T2" {
		t.Error("p-1 主技术员应为 T2")
	}
}

func TestLeaveService_Approve_SkipsPastDays(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-18T08:00:00Z")

	resp, err := svc.Approve(context.Background(), "l-1", "admin-1")
	if err != nil {
		t.Fatalf("Approve 应成功: %v", err)
	}
	if len(resp.Reassignments) != 1 || resp.Reassignments[0].AppointmentID != "a-2" {
		t.Errorf("只应处理今天起的预约，实际 %+v", resp.Reassignments)
	}
	if env.appts.appts["a-1"].TechnicianID != "T1" {
		t.Error("已过去的预约不应被改派")
	}
}

func TestLeaveService_Approve_LeaveAlreadyOver(t *testing.T) {
	svc, _ := setupLeaveApproval("2025-03-20T08:00:00Z")

	resp, err := svc.Approve(context.Background(), "l-1", "admin-1")
	if err != nil {
		t.Fatalf("Approve 应成功: %v", err)
	}
	if resp.Reassignments == nil || len(resp.Reassignments) != 0 {
		t.Errorf("期望空的改派列表，实际 %+v", resp.Reassignments)
	}
}

func TestLeaveService_Approve_FailureEscalates(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-16T09:00:00Z")
	// 已开工的预约不能被改派，项目应被兜底升级
	a := env.appts.appts["a-1"]
	a.Status = "in_progress"
	env.appts.appts["a-1"] = a
	// 项目缺失时连升级也失败
	delete(env.projects.projects, "p-2")

	resp, err := svc.Approve(context.Background(), "l-1", "admin-1")
	if err != nil {
		t.Fatalf("单个改派失败不应影响审批: %v", err)
	}

	got := outcomesByAppointment(resp.Reassignments)
	if r := got["a-1"]; r.Outcome != dto.OutcomeEscalated || r.Error == "" {
		t.Errorf("a-1 应为 escalated 并附带错误，实际 %+v", r)
	}
	if env.projects.projects["p-1"].Status != "urgent_reschedule" {
		t.Errorf("p-1 应转为紧急改期，实际 %s", env.projects.projects["p-1"].Status)
	}
	if r := got["a-2"]; r.Outcome != dto.OutcomeFailed {
		t.Errorf("a-2 应为 failed，实际 %+v", r)
	}
	entries := env.timeline.forProject("p-1")
	if len(entries) != 1 || entries[0].Kind != TimelineEscalation {
		t.Errorf("p-1 期望一条 escalation 时间线，实际 %+v", entries)
	}
}

func TestLeaveService_Approve_AppointmentLookupFails(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-16T09:00:00Z")
	env.appts.rangeErr = errors.New("connection reset")

	resp, err := svc.Approve(context.Background(), "l-1", "admin-1")
	if !pkgerrors.IsDataAccess(err) {
		t.Fatalf("期望 DataAccessError，实际 resp=%+v err=%v", resp, err)
	}
	if env.leaves.leaves["l-1"].Status != "pending" {
		t.Errorf("查询失败时请假应保持 pending，实际 %s", env.leaves.leaves["l-1"].Status)
	}
	if env.techs.techs["T1"].AvailabilityStatus != "available" {
		t.Error("查询失败时不应修改技术员可用状态")
	}
	for _, id := range []string{"a-1", "a-2"} {
		if env.appts.appts[id].TechnicianID != "T1" {
			t.Errorf("%s 不应被改动", id)
		}
	}

	// 故障恢复后可以重新批准
	env.appts.rangeErr = nil
	resp, err = svc.Approve(context.Background(), "l-1", "admin-1")
	if err != nil {
		t.Fatalf("重试批准应成功: %v", err)
	}
	if len(resp.Reassignments) != 2 {
		t.Errorf("期望处理 2 个预约，实际 %d", len(resp.Reassignments))
	}
}

func TestLeaveService_Approve_NotPending(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-16T09:00:00Z")
	env.addLeave("l-2", "T1", "2025-04-01", "2025-04-02", "rejected")

	if _, err := svc.Approve(context.Background(), "l-2", "admin-1"); !errors.Is(err, ErrLeaveNotPending) {
		t.Errorf("期望 ErrLeaveNotPending，实际: %v", err)
	}
	if _, err := svc.Approve(context.Background(), "ghost", "admin-1"); !errors.Is(err, ErrLeaveNotFound) {
		t.Errorf("期望 ErrLeaveNotFound，实际: %v", err)
	}
}

// ── Reject / Cancel ──

func TestLeaveService_Reject(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-16T09:00:00Z")

	resp, err := svc.Reject(context.Background(), "l-1", &dto.RejectLeaveRequest{Reason: "当周安装任务过多"}, "admin-1")
	if err != nil {
		t.Fatalf("Reject 应成功: %v", err)
	}
	if resp.Status != "rejected" || resp.ReviewNote != "当周安装任务过多" {
		t.Errorf("驳回结果不正确: %+v", resp)
	}
	if resp.ReviewedBy == nil || *resp.ReviewedBy != "admin-1" {
		t.Error("应记录审批人")
	}
	if env.appts.appts["a-1"].TechnicianID != "T1" {
		t.Error("驳回不应触发改派")
	}
}

func TestLeaveService_Cancel_RestoresAvailability(t *testing.T) {
	svc, env := setupLeaveApproval("2025-03-17T09:00:00Z")
	env.addLeave("l-9", "T2", "2025-03-17", "2025-03-17", "approved")
	tech := env.techs.techs["T2"]
	tech.AvailabilityStatus = "unavailable"
	env.techs.techs["T2"] = tech

	resp, err := svc.Cancel(context.Background(), "l-9", "admin-1")
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if resp.Status != "cancelled" {
		t.Errorf("期望 cancelled，实际 %s", resp.Status)
	}
	if env.techs.techs["T2"].AvailabilityStatus != "available" {
		t.Error("取消已批准请假后应恢复 available")
	}

	if _, err := svc.Cancel(context.Background(), "l-9", "admin-1"); !errors.Is(err, ErrLeaveNotCancellable) {
		t.Errorf("重复取消期望 ErrLeaveNotCancellable，实际: %v", err)
	}
}

// ── Create ──

func TestLeaveService_Create(t *testing.T) {
	svc, _ := setupLeaveApproval("2025-03-16T09:00:00Z")
	ctx := context.Background()

	for i, typ := range []string{"vacation", "sickness", "suspension", "unplanned"} {
		day := fmt.Sprintf("2025-04-%02d", i+1)
		resp, err := svc.Create(ctx, &dto.CreateLeaveRequest{
			TechnicianID: "T2", LeaveType: typ, StartDate: day, EndDate: day,
		}, "user-T2")
		if err != nil {
			t.Fatalf("类型 %s 的请假应创建成功: %v", typ, err)
		}
		if resp.Status != "pending" || resp.StartDate != day || resp.LeaveType != typ {
			t.Errorf("新请假应为 pending，实际 %+v", resp)
		}
	}

	_, err := svc.Create(ctx, &dto.CreateLeaveRequest{TechnicianID: "T2", LeaveType: "annual", StartDate: "2025-04-01", EndDate: "2025-04-02"}, "user-T2")
	if !errors.Is(err, ErrInvalidLeaveType) {
		t.Errorf("期望 ErrInvalidLeaveType，实际: %v", err)
	}
	_, err = svc.Create(ctx, &dto.CreateLeaveRequest{TechnicianID: "T2", LeaveType: "vacation", StartDate: "2025-04-03", EndDate: "2025-04-02"}, "user-T2")
	if !errors.Is(err, ErrInvalidLeaveRange) {
		t.Errorf("期望 ErrInvalidLeaveRange，实际: %v", err)
	}
	_, err = svc.Create(ctx, &dto.CreateLeaveRequest{TechnicianID: "ghost", LeaveType: "vacation", StartDate: "2025-04-01", EndDate: "2025-04-02"}, "user-T2")
	if !errors.Is(err, ErrTechnicianNotFound) {
		t.Errorf("期望 ErrTechnicianNotFound，实际: %v", err)
	}
}
