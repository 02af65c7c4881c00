package service

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fieldops/backend/config"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
)

// ── 测试环境 ──

type testEnv struct {
	cfg        *config.Config
	repo       *repository.Repository
	techs      *mockTechnicianRepo
	leaves     *mockLeaveRepo
	appts      *mockAppointmentRepo
	projects   *mockProjectRepo
	timeline   *mockTimelineRepo
	notifs     *mockNotificationRepo
	tokens     *mockRescheduleTokenRepo
	dispatcher *mockDispatcher
	locker     *mockLocker
}

func newTestEnv() *testEnv {
	techs := newMockTechnicianRepo()
	projects := newMockProjectRepo()
	e := &testEnv{
		cfg: &config.Config{
			Server: config.ServerConfig{BaseURL: "https://ops.example.com/"},
			Scheduling: config.SchedulingConfig{
				RescheduleLinkTTL:   72 * time.Hour,
				LockTTL:             15 * time.Second,
				PartialWriteRetries: 2,
				Timezone:            "UTC",
			},
		},
		techs:      techs,
		leaves:     newMockLeaveRepo(),
		appts:      newMockAppointmentRepo(techs, projects),
		projects:   projects,
		timeline:   newMockTimelineRepo(),
		notifs:     newMockNotificationRepo(),
		tokens:     newMockRescheduleTokenRepo(),
		dispatcher: &mockDispatcher{},
		locker:     newMockLocker(),
	}
	e.repo = &repository.Repository{
		Technician:      e.techs,
		Leave:           e.leaves,
		Appointment:     e.appts,
		Project:         e.projects,
		Timeline:        e.timeline,
		Notification:    e.notifs,
		RescheduleToken: e.tokens,
	}
	e.repo.Tx = &mockTx{repo: e.repo}
	return e
}

func (e *testEnv) service() *Service {
	return NewService(e.cfg, e.repo, e.dispatcher, e.locker, zap.NewNop())
}

func (e *testEnv) reassigner() *reassignmentService {
	return newReassignmentService(&e.cfg.Scheduling, e.repo, e.locker, newNotifier(e.dispatcher, zap.NewNop()), zap.NewNop())
}

// ── 数据构造 ──

func day(s string) datatypes.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return datatypes.Date(t)
}

// addTechnician 默认周一至周五 08:00-17:00
func (e *testEnv) addTechnician(id string, days ...int) {
	if len(days) == 0 {
		days = []int{1, 2, 3, 4, 5}
	}
	e.techs.techs[id] = model.Technician{
		TechnicianID:       id,
		UserID:             "user-" + id,
		Name:               "技术员" + id,
		Email:              id + "@example.com",
		Active:             true,
		AvailabilityStatus: "available",
		WorkStart:          "08:00",
		WorkEnd:            "17:00",
		WorkDays:           model.IntArray(days),
		VersionedModel:     model.VersionedModel{Version: 1},
	}
}

func (e *testEnv) addLeave(id, techID, start, end, status string) {
	e.leaves.leaves[id] = model.Leave{
		LeaveID:        id,
		TechnicianID:   techID,
		LeaveType:      "vacation",
		StartDate:      day(start),
		EndDate:        day(end),
		Status:         status,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

func (e *testEnv) addProject(id, status string, assigned ...string) {
	e.projects.projects[id] = model.Project{
		ProjectID:      id,
		Name:           "屋顶光伏-" + id,
		ClientName:     "客户" + id,
		ClientEmail:    id + "@client.example.com",
		Address:        "测试路 1 号",
		Status:         status,
		AssignedTo:     model.StringArray(assigned),
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

func (e *testEnv) addAppointment(id, projectID, techID, date, clock, status string) {
	e.appts.appts[id] = model.Appointment{
		AppointmentID:  id,
		ProjectID:      projectID,
		TechnicianID:   techID,
		ScheduledDate:  day(date),
		ScheduledTime:  clock,
		Status:         status,
		VersionedModel: model.VersionedModel{Version: 1},
	}
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}
