package service

import (
	"context"
	"errors"
	"testing"

	"fieldops/backend/internal/dto"
	pkgerrors "fieldops/backend/pkg/errors"
)

// 技术员 T：周一至周五 08:00-17:00，2025-03-10~12 已批准请假，2025-03-15 有预约
func setupAvailabilityScenario() (AvailabilityService, *testEnv) {
	env := newTestEnv()
	env.addTechnician("T")
	env.addLeave("l-1", "T", "2025-03-10", "2025-03-12", "approved")
	env.addProject("p-1", "pending_installation", "T")
	env.addAppointment("a-1", "p-1", "T", "2025-03-15", "09:00", "scheduled")
	return env.service().Availability, env
}

func TestAvailabilityService_FindCandidates_Scenario(t *testing.T) {
	svc, _ := setupAvailabilityScenario()

	cases := []struct {
		date, time string
		want       int
	}{
		{"2025-03-11", "10:00", 0},
		{"2025-03-15", "09:00", 0},
		{"2025-03-17", "09:00", 1},
		{"2025-03-16", "09:00", 0},
	}
	for _, tc := range cases {
		resp, err := svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{Date: tc.date, Time: tc.time})
		if err != nil {
			t.Fatalf("%s %s: FindCandidates 应成功: %v", tc.date, tc.time, err)
		}
		if resp.Count != tc.want || len(resp.Candidates) != tc.want {
			t.Errorf("%s %s: 期望 %d 个候选，实际 %d", tc.date, tc.time, tc.want, resp.Count)
		}
		if resp.Candidates == nil {
			t.Errorf("%s %s: 候选列表不应为 nil", tc.date, tc.time)
		}
	}
}

func TestAvailabilityService_FindCandidates_Exclude(t *testing.T) {
	svc, env := setupAvailabilityScenario()
	env.addTechnician("U")

	resp, err := svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{
		Date: "2025-03-17", Time: "09:00", ExcludeTechnicianID: "T",
	})
	if err != nil {
		t.Fatalf("FindCandidates 应成功: %v", err)
	}
	if resp.Count != 1 || resp.Candidates[0].TechnicianID != "U" {
		t.Errorf("期望只剩 U，实际 %+v", resp.Candidates)
	}
}

func TestAvailabilityService_FindCandidates_InvalidSlot(t *testing.T) {
	svc, _ := setupAvailabilityScenario()

	_, err := svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{Date: "2025-02-30", Time: "09:00"})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("期望 ErrInvalidSlot，实际: %v", err)
	}
	_, err = svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{Date: "2025-03-17", Time: "24:00"})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("期望 ErrInvalidSlot，实际: %v", err)
	}
}

func TestAvailabilityService_FindCandidates_StoreFailure(t *testing.T) {
	svc, env := setupAvailabilityScenario()
	env.techs.listErr = errors.New("connection refused")

	_, err := svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{Date: "2025-03-17", Time: "09:00"})
	if !pkgerrors.IsDataAccess(err) {
		t.Errorf("存储失败应返回 DataAccessError，实际: %v", err)
	}
}

func TestAvailabilityService_FindCandidates_CorruptRow(t *testing.T) {
	svc, env := setupAvailabilityScenario()
	tech := env.techs.techs["T"]
	tech.WorkStart = "8点"
	env.techs.techs["T"] = tech

	_, err := svc.FindCandidates(context.Background(), &dto.FindCandidatesRequest{Date: "2025-03-17", Time: "09:00"})
	if !pkgerrors.IsDataAccess(err) {
		t.Errorf("数据异常应返回 DataAccessError 而非空列表，实际: %v", err)
	}
}

func TestAvailabilityService_EvaluateTechnician(t *testing.T) {
	svc, _ := setupAvailabilityScenario()

	resp, err := svc.EvaluateTechnician(context.Background(), "T", &dto.EvaluateTechnicianRequest{Date: "2025-03-11", Time: "18:00"})
	if err != nil {
		t.Fatalf("EvaluateTechnician 应成功: %v", err)
	}
	if resp.Available {
		t.Error("请假期间不应可用")
	}
	want := map[string]bool{"outside_hours": true, "on_leave": true}
	if len(resp.Reasons) != len(want) {
		t.Fatalf("期望原因 %v，实际 %v", want, resp.Reasons)
	}
	for _, r := range resp.Reasons {
		if !want[r] {
			t.Errorf("意外的原因 %s", r)
		}
	}

	resp, err = svc.EvaluateTechnician(context.Background(), "T", &dto.EvaluateTechnicianRequest{Date: "2025-03-17", Time: "10:00"})
	if err != nil {
		t.Fatalf("EvaluateTechnician 应成功: %v", err)
	}
	if !resp.Available || len(resp.Reasons) != 0 {
		t.Errorf("期望可用，实际 %+v", resp)
	}
}

func TestAvailabilityService_EvaluateTechnician_NotFound(t *testing.T) {
	svc, _ := setupAvailabilityScenario()

	_, err := svc.EvaluateTechnician(context.Background(), "ghost", &dto.EvaluateTechnicianRequest{Date: "2025-03-17", Time: "10:00"})
	if !errors.Is(err, ErrTechnicianNotFound) {
		t.Errorf("期望 ErrTechnicianNotFound，实际: %v", err)
	}
}
