package scheduling

import (
	"errors"
	"testing"
)

func TestCheckProjectTransition_MainPath(t *testing.T) {
	steps := []struct{ from, to ProjectStatus }{
		{ProjectPendingOnboarding, ProjectPendingScheduling},
		{ProjectPendingScheduling, ProjectPendingAssignment},
		{ProjectPendingAssignment, ProjectPendingInstallation},
		{ProjectPendingInstallation, ProjectActive},
		{ProjectPendingInstallation, ProjectInProgress},
		{ProjectActive, ProjectInProgress},
		{ProjectInProgress, ProjectActive},
		{ProjectActive, ProjectCompleted},
		{ProjectInProgress, ProjectCompleted},
	}
	for _, s := range steps {
		if err := CheckProjectTransition(s.from, s.to, 1); err != nil {
			t.Errorf("%s → %s should be allowed: %v", s.from, s.to, err)
		}
	}
}

func TestCheckProjectTransition_Rejected(t *testing.T) {
	cases := []struct{ from, to ProjectStatus }{
		{ProjectPendingOnboarding, ProjectCompleted},
		{ProjectPendingScheduling, ProjectPendingOnboarding},
		{ProjectCompleted, ProjectActive},
		{ProjectCancelled, ProjectPendingScheduling},
		{ProjectActive, ProjectActive},
	}
	for _, c := range cases {
		err := CheckProjectTransition(c.from, c.to, 1)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s → %s: expected ErrInvalidTransition, got %v", c.from, c.to, err)
		}
	}
}

func TestCheckProjectTransition_SideBranches(t *testing.T) {
	for _, from := range []ProjectStatus{ProjectPendingScheduling, ProjectActive, ProjectPendingInstallation} {
		for _, to := range []ProjectStatus{ProjectPaused, ProjectPendingClient, ProjectInReview, ProjectCancelled, ProjectIncomplete, ProjectUrgentReschedule} {
			if err := CheckProjectTransition(from, to, 1); err != nil {
				t.Errorf("%s → %s should be allowed: %v", from, to, err)
			}
		}
	}
	// 挂起后可恢复到主线任意非终态
	if err := CheckProjectTransition(ProjectPaused, ProjectActive, 1); err != nil {
		t.Errorf("paused → active should be allowed: %v", err)
	}
	if err := CheckProjectTransition(ProjectPaused, ProjectCompleted, 1); err == nil {
		t.Error("paused → completed should be rejected")
	}
}

func TestCheckProjectTransition_UrgentOnlyByReschedule(t *testing.T) {
	for _, to := range []ProjectStatus{ProjectPendingInstallation, ProjectActive, ProjectCancelled, ProjectPaused} {
		err := CheckProjectTransition(ProjectUrgentReschedule, to, 1)
		if !errors.Is(err, ErrUrgentRescheduleLocked) {
			t.Errorf("urgent_reschedule → %s: expected ErrUrgentRescheduleLocked, got %v", to, err)
		}
	}
	if !CanReschedule(ProjectUrgentReschedule) {
		t.Error("reschedule action must be able to clear urgent_reschedule")
	}
	if CanReschedule(ProjectCompleted) || CanReschedule(ProjectCancelled) {
		t.Error("terminal projects cannot be rescheduled")
	}
}

func TestCheckProjectTransition_InstallationRequiresAssignment(t *testing.T) {
	err := CheckProjectTransition(ProjectPendingAssignment, ProjectPendingInstallation, 0)
	if !errors.Is(err, ErrAssignmentRequired) {
		t.Errorf("expected ErrAssignmentRequired, got %v", err)
	}
}

func TestCheckAppointmentTransition(t *testing.T) {
	allowed := []struct{ from, to AppointmentStatus }{
		{AppointmentScheduled, AppointmentOnRoute},
		{AppointmentOnRoute, AppointmentInProgress},
		{AppointmentInProgress, AppointmentCompleted},
		{AppointmentScheduled, AppointmentCancelled},
		{AppointmentOnRoute, AppointmentIncomplete},
		{AppointmentInProgress, AppointmentCancelled},
	}
	for _, a := range allowed {
		if err := CheckAppointmentTransition(a.from, a.to); err != nil {
			t.Errorf("%s → %s should be allowed: %v", a.from, a.to, err)
		}
	}

	rejected := []struct{ from, to AppointmentStatus }{
		{AppointmentScheduled, AppointmentCompleted},
		{AppointmentCompleted, AppointmentCancelled},
		{AppointmentCancelled, AppointmentScheduled},
		{AppointmentInProgress, AppointmentOnRoute},
	}
	for _, r := range rejected {
		if err := CheckAppointmentTransition(r.from, r.to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s → %s: expected ErrInvalidTransition, got %v", r.from, r.to, err)
		}
	}
}

func TestCanResetToScheduled(t *testing.T) {
	if CanResetToScheduled(AppointmentCompleted) || CanResetToScheduled(AppointmentInProgress) {
		t.Error("completed/in_progress appointments cannot be reset by reassignment")
	}
	if !CanResetToScheduled(AppointmentScheduled) || !CanResetToScheduled(AppointmentCancelled) {
		t.Error("scheduled/cancelled appointments can be reset by reassignment")
	}
}

func TestParseStatuses(t *testing.T) {
	if _, err := ParseProjectStatus("urgent_reschedule"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseProjectStatus("Urgent Reschedule"); err == nil {
		t.Error("display labels must not parse as status")
	}
	if _, err := ParseAppointmentStatus("on_route"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseLeaveStatus("approved"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseLeaveType("annual"); err == nil {
		t.Error("expected unknown leave type error")
	}
}
