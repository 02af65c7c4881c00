package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	pkgerrors "fieldops/backend/pkg/errors"
)

// 所有 mock 按值保存记录，读出时返回副本，模拟数据库行为

func sameDay(d time.Time, day time.Time) bool {
	return d.UTC().Equal(day.UTC())
}

func isOpen(status string) bool {
	return status != "cancelled" && status != "completed"
}

// ── Mock TechnicianRepository ──

type mockTechnicianRepo struct {
	techs   map[string]model.Technician
	listErr error
}

func newMockTechnicianRepo() *mockTechnicianRepo {
	return &mockTechnicianRepo{techs: make(map[string]model.Technician)}
}

func (m *mockTechnicianRepo) Create(_ context.Context, t *model.Technician) error {
	if t.TechnicianID == "" {
		t.TechnicianID = fmt.Sprintf("tech-%d", len(m.techs)+1)
	}
	if t.Version == 0 {
		t.Version = 1
	}
	m.techs[t.TechnicianID] = *t
	return nil
}

func (m *mockTechnicianRepo) GetByID(_ context.Context, id string) (*model.Technician, error) {
	if t, ok := m.techs[id]; ok {
		return &t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTechnicianRepo) GetByUserID(_ context.Context, userID string) (*model.Technician, error) {
	for _, t := range m.techs {
		if t.UserID == userID {
			t := t
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTechnicianRepo) ListByIDs(_ context.Context, ids []string) ([]model.Technician, error) {
	var result []model.Technician
	for _, id := range ids {
		if t, ok := m.techs[id]; ok {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TechnicianID < result[j].TechnicianID })
	return result, nil
}

func (m *mockTechnicianRepo) List(_ context.Context, activeOnly bool) ([]model.Technician, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := []model.Technician{}
	for _, t := range m.techs {
		if activeOnly && !t.Active {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TechnicianID < result[j].TechnicianID })
	return result, nil
}

func (m *mockTechnicianRepo) Update(_ context.Context, t *model.Technician) error {
	old, ok := m.techs[t.TechnicianID]
	if !ok || old.Version != t.Version {
		return pkgerrors.ErrOptimisticLock
	}
	t.Version++
	m.techs[t.TechnicianID] = *t
	return nil
}

func (m *mockTechnicianRepo) UpdateAvailability(_ context.Context, id, status, _ string) error {
	t, ok := m.techs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.AvailabilityStatus = status
	m.techs[id] = t
	return nil
}

// ── Mock LeaveRepository ──

type mockLeaveRepo struct {
	leaves map[string]model.Leave
}

func newMockLeaveRepo() *mockLeaveRepo {
	return &mockLeaveRepo{leaves: make(map[string]model.Leave)}
}

func (m *mockLeaveRepo) covers(l model.Leave, day time.Time) bool {
	return l.Status == "approved" &&
		!day.Before(time.Time(l.StartDate)) &&
		!day.After(time.Time(l.EndDate))
}

func (m *mockLeaveRepo) Create(_ context.Context, l *model.Leave) error {
	if l.LeaveID == "" {
		l.LeaveID = fmt.Sprintf("leave-%d", len(m.leaves)+1)
	}
	if l.Version == 0 {
		l.Version = 1
	}
	m.leaves[l.LeaveID] = *l
	return nil
}

func (m *mockLeaveRepo) GetByID(_ context.Context, id string) (*model.Leave, error) {
	if l, ok := m.leaves[id]; ok {
		return &l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLeaveRepo) ListByTechnician(_ context.Context, technicianID string) ([]model.Leave, error) {
	var result []model.Leave
	for _, l := range m.leaves {
		if l.TechnicianID == technicianID {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return time.Time(result[i].StartDate).After(time.Time(result[j].StartDate))
	})
	return result, nil
}

func (m *mockLeaveRepo) ListApprovedCovering(_ context.Context, day time.Time) ([]model.Leave, error) {
	var result []model.Leave
	for _, l := range m.leaves {
		if m.covers(l, day) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLeaveRepo) ListApprovedCoveringForTechnician(_ context.Context, technicianID string, day time.Time) ([]model.Leave, error) {
	var result []model.Leave
	for _, l := range m.leaves {
		if l.TechnicianID == technicianID && m.covers(l, day) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLeaveRepo) Update(_ context.Context, l *model.Leave) error {
	old, ok := m.leaves[l.LeaveID]
	if !ok || old.Version != l.Version {
		return pkgerrors.ErrOptimisticLock
	}
	l.Version++
	m.leaves[l.LeaveID] = *l
	return nil
}

// ── Mock AppointmentRepository ──

type mockAppointmentRepo struct {
	appts    map[string]model.Appointment
	techs    *mockTechnicianRepo
	projects *mockProjectRepo
	seq      int

	// recheckExtra 只出现在单人当天查询中，模拟快照之后被他人抢占
	recheckExtra []model.Appointment
	updateErr    error
	// rangeErr 让按区间列出技术员预约的查询失败
	rangeErr error
}

func newMockAppointmentRepo(techs *mockTechnicianRepo, projects *mockProjectRepo) *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[string]model.Appointment), techs: techs, projects: projects}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	if a.AppointmentID == "" {
		m.seq++
		a.AppointmentID = fmt.Sprintf("appt-new-%d", m.seq)
	}
	if a.Version == 0 {
		a.Version = 1
	}
	m.appts[a.AppointmentID] = *a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	if a, ok := m.appts[id]; ok {
		return &a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAppointmentRepo) GetOpenByProject(_ context.Context, projectID string) (*model.Appointment, error) {
	var found *model.Appointment
	for _, a := range m.appts {
		if a.ProjectID != projectID || !isOpen(a.Status) {
			continue
		}
		if found == nil || time.Time(a.ScheduledDate).After(time.Time(found.ScheduledDate)) {
			a := a
			found = &a
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (m *mockAppointmentRepo) ListOpenOnDate(_ context.Context, day time.Time) ([]model.Appointment, error) {
	var result []model.Appointment
	for _, a := range m.appts {
		if isOpen(a.Status) && sameDay(time.Time(a.ScheduledDate), day) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepo) ListOpenByTechnicianOnDate(_ context.Context, technicianID string, day time.Time) ([]model.Appointment, error) {
	var result []model.Appointment
	for _, a := range append(m.sorted(), m.recheckExtra...) {
		if a.TechnicianID == technicianID && isOpen(a.Status) && sameDay(time.Time(a.ScheduledDate), day) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepo) ListOpenByTechnicianBetween(_ context.Context, technicianID string, from, to time.Time) ([]model.Appointment, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	var result []model.Appointment
	for _, a := range m.sorted() {
		d := time.Time(a.ScheduledDate)
		if a.TechnicianID == technicianID && isOpen(a.Status) && !d.Before(from) && !d.After(to) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepo) ListOpenByTechnicianFrom(_ context.Context, technicianID string, from time.Time) ([]model.Appointment, error) {
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	var result []model.Appointment
	for _, a := range m.sorted() {
		if a.TechnicianID == technicianID && isOpen(a.Status) && !time.Time(a.ScheduledDate).Before(from) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var result []model.Appointment
	for _, a := range m.sorted() {
		d := time.Time(a.ScheduledDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		if t, ok := m.techs.techs[a.TechnicianID]; ok {
			a.Technician = &t
		}
		if p, ok := m.projects.projects[a.ProjectID]; ok {
			a.Project = &p
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	old, ok := m.appts[a.AppointmentID]
	if !ok || old.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	a.Version++
	m.appts[a.AppointmentID] = *a
	return nil
}

// sorted 按日期、时刻、ID 升序
func (m *mockAppointmentRepo) sorted() []model.Appointment {
	result := make([]model.Appointment, 0, len(m.appts))
	for _, a := range m.appts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		di, dj := time.Time(result[i].ScheduledDate), time.Time(result[j].ScheduledDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if result[i].ScheduledTime != result[j].ScheduledTime {
			return result[i].ScheduledTime < result[j].ScheduledTime
		}
		return result[i].AppointmentID < result[j].AppointmentID
	})
	return result
}

// ── Mock ProjectRepository ──

type mockProjectRepo struct {
	projects map[string]model.Project

	// failUpdates 接下来的 N 次 Update 直接失败
	failUpdates int
	updateCalls int
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]model.Project)}
}

func (m *mockProjectRepo) Create(_ context.Context, p *model.Project) error {
	if p.ProjectID == "" {
		p.ProjectID = fmt.Sprintf("proj-%d", len(m.projects)+1)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.projects[p.ProjectID] = *p
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	if p, ok := m.projects[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProjectRepo) ListByStatus(_ context.Context, status string) ([]model.Project, error) {
	result := []model.Project{}
	for _, p := range m.projects {
		if p.Status == status {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProjectID < result[j].ProjectID })
	return result, nil
}

func (m *mockProjectRepo) CountByStatus(_ context.Context) ([]repository.StatusCount, error) {
	counts := make(map[string]int64)
	for _, p := range m.projects {
		counts[p.Status]++
	}
	var result []repository.StatusCount
	for status, n := range counts {
		result = append(result, repository.StatusCount{Status: status, Count: n})
	}
	return result, nil
}

func (m *mockProjectRepo) Update(_ context.Context, p *model.Project) error {
	m.updateCalls++
	if m.failUpdates > 0 {
		m.failUpdates--
		return fmt.Errorf("connection reset by peer")
	}
	old, ok := m.projects[p.ProjectID]
	if !ok || old.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version++
	m.projects[p.ProjectID] = *p
	return nil
}

// ── Mock TimelineRepository ──

type mockTimelineRepo struct {
	entries []model.ProjectTimelineEntry
}

func newMockTimelineRepo() *mockTimelineRepo {
	return &mockTimelineRepo{}
}

func (m *mockTimelineRepo) Append(_ context.Context, e *model.ProjectTimelineEntry) error {
	if e.EntryID == "" {
		e.EntryID = fmt.Sprintf("entry-%d", len(m.entries)+1)
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockTimelineRepo) ListByProject(_ context.Context, projectID string) ([]model.ProjectTimelineEntry, error) {
	var result []model.ProjectTimelineEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ProjectID == projectID {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *mockTimelineRepo) Latest(_ context.Context, projectID string) (*model.ProjectTimelineEntry, error) {
	var latest *model.ProjectTimelineEntry
	for i := range m.entries {
		e := m.entries[i]
		if e.ProjectID != projectID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = &e
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockTimelineRepo) forProject(projectID string) []model.ProjectTimelineEntry {
	var result []model.ProjectTimelineEntry
	for _, e := range m.entries {
		if e.ProjectID == projectID {
			result = append(result, e)
		}
	}
	return result
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = fmt.Sprintf("notif-%d", len(m.items)+1)
	}
	m.items = append(m.items, *n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var mine []model.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID && !(unreadOnly && m.items[i].IsRead) {
			mine = append(mine, m.items[i])
		}
	}
	total := int64(len(mine))
	if offset >= len(mine) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	for i := range m.items {
		if m.items[i].NotificationID == id && m.items[i].UserID == userID {
			now := time.Now()
			m.items[i].IsRead = true
			m.items[i].ReadAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock RescheduleTokenRepository ──

type mockRescheduleTokenRepo struct {
	tokens map[string]model.RescheduleToken
}

func newMockRescheduleTokenRepo() *mockRescheduleTokenRepo {
	return &mockRescheduleTokenRepo{tokens: make(map[string]model.RescheduleToken)}
}

func (m *mockRescheduleTokenRepo) Create(_ context.Context, t *model.RescheduleToken) error {
	if t.TokenID == "" {
		t.TokenID = fmt.Sprintf("token-%d", len(m.tokens)+1)
	}
	m.tokens[t.TokenID] = *t
	return nil
}

func (m *mockRescheduleTokenRepo) ListUsable(_ context.Context, appointmentID string, now time.Time) ([]model.RescheduleToken, error) {
	var result []model.RescheduleToken
	for _, t := range m.tokens {
		if t.AppointmentID == appointmentID && t.UsedAt == nil && t.ExpiresAt.After(now) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *mockRescheduleTokenRepo) MarkUsed(_ context.Context, tokenID string, at time.Time) error {
	t, ok := m.tokens[tokenID]
	if !ok || t.UsedAt != nil {
		return gorm.ErrRecordNotFound
	}
	t.UsedAt = &at
	m.tokens[tokenID] = t
	return nil
}

// ── Mock TxManager ──

// mockTx 不做真正的回滚，fn 直接作用在同一组 mock 上
type mockTx struct {
	repo *repository.Repository
}

func (m *mockTx) WithinTransaction(_ context.Context, fn func(tx *repository.Repository) error) error {
	return fn(m.repo)
}

// ── Mock Dispatcher / Locker ──

type mockDispatcher struct {
	mu       sync.Mutex
	notices  []Notice
	emails   []RescheduleEmail
	notifErr error
	mailErr  error
}

func (m *mockDispatcher) DispatchNotification(_ context.Context, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifErr != nil {
		return m.notifErr
	}
	m.notices = append(m.notices, n)
	return nil
}

func (m *mockDispatcher) DispatchRescheduleEmail(_ context.Context, e RescheduleEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mailErr != nil {
		return m.mailErr
	}
	m.emails = append(m.emails, e)
	return nil
}

type mockLocker struct {
	held     map[string]bool
	err      error
	acquired []string
	released []string
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.held[key] {
		return nil, pkgerrors.ErrLockNotAcquired
	}
	m.held[key] = true
	m.acquired = append(m.acquired, key)
	return func(context.Context) error {
		delete(m.held, key)
		m.released = append(m.released, key)
		return nil
	}, nil
}
