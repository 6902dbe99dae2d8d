// Package storetest provides an in-memory store with the same method set as
// store.Store, for engine and fan-out tests.
package storetest

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"
)

type txKey struct{}

// txState holds the rollback image of one WithTx call. The image is taken on
// the first write so a transaction that never wrote cannot undo the writes of
// a transaction that committed in the meantime.
type txState struct {
	parent *txState
	image  *snapshot
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// InTx reports whether ctx was derived inside WithTx.
func InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// Memory is safe for concurrent use. Failures can be injected per method name
// through Fail.
type Memory struct {
	mu sync.Mutex

	reports       map[string]types.Report
	history       []types.ReportHistory
	rejections    []types.RejectedReport
	resolutions   []types.ResolvedReport
	assignments   []types.AssignedReport
	escalations   []types.EscalatedReport
	candidates    map[types.CandidateType]map[string]types.RoutingCandidate
	reps          map[types.CandidateType][]types.Representative
	profiles      map[string]types.Profile
	tokens        []types.PushToken
	notifications []types.Notification
	outbox        []types.OutboxEvent
	numbers       map[string]bool

	failures map[string]error
	clock    time.Time
}

func New() *Memory {
	return &Memory{
		reports:    make(map[string]types.Report),
		candidates: make(map[types.CandidateType]map[string]types.RoutingCandidate),
		reps:       make(map[types.CandidateType][]types.Representative),
		profiles:   make(map[string]types.Profile),
		numbers:    make(map[string]bool),
		failures:   make(map[string]error),
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Fail makes every later call to method return err. A nil err clears it.
func (m *Memory) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

func (m *Memory) failure(method string) error {
	return m.failures[method]
}

// now returns strictly increasing timestamps so ordering by created_at is
// deterministic.
func (m *Memory) now() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

type snapshot struct {
	reports       map[string]types.Report
	history       []types.ReportHistory
	rejections    []types.RejectedReport
	resolutions   []types.ResolvedReport
	assignments   []types.AssignedReport
	escalations   []types.EscalatedReport
	notifications []types.Notification
	outbox        []types.OutboxEvent
	numbers       map[string]bool
}

func (m *Memory) snapshot() snapshot {
	reports := make(map[string]types.Report, len(m.reports))
	for k, v := range m.reports {
		reports[k] = v
	}
	numbers := make(map[string]bool, len(m.numbers))
	for k, v := range m.numbers {
		numbers[k] = v
	}
	return snapshot{
		reports:       reports,
		history:       append([]types.ReportHistory(nil), m.history...),
		rejections:    append([]types.RejectedReport(nil), m.rejections...),
		resolutions:   append([]types.ResolvedReport(nil), m.resolutions...),
		assignments:   append([]types.AssignedReport(nil), m.assignments...),
		escalations:   append([]types.EscalatedReport(nil), m.escalations...),
		notifications: append([]types.Notification(nil), m.notifications...),
		outbox:        append([]types.OutboxEvent(nil), m.outbox...),
		numbers:       numbers,
	}
}

func (m *Memory) restore(s snapshot) {
	m.reports = s.reports
	m.history = s.history
	m.rejections = s.rejections
	m.resolutions = s.resolutions
	m.assignments = s.assignments
	m.escalations = s.escalations
	m.notifications = s.notifications
	m.outbox = s.outbox
	m.numbers = s.numbers
}

// begin records the rollback image of every enclosing transaction that has
// not written yet. Callers hold m.mu.
func (m *Memory) begin(ctx context.Context) {
	for st := txFrom(ctx); st != nil && st.image == nil; st = st.parent {
		image := m.snapshot()
		st.image = &image
	}
}

// WithTx rolls every table back to its state before the first write of fn
// when fn fails. Nested calls behave like savepoints.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	if err := m.failure("WithTx"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	st := &txState{parent: txFrom(ctx)}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		m.mu.Lock()
		if st.image != nil {
			m.restore(*st.image)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Memory) Report(_ context.Context, reportID string, _ bool) (*types.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Report"); err != nil {
		return nil, err
	}
	report, ok := m.reports[reportID]
	if !ok {
		return nil, types.ErrReportNotFound
	}
	return &report, nil
}

func (m *Memory) filterReports(filter types.ReportFilter, ids map[string]bool) []*types.Report {
	out := make([]*types.Report, 0)
	for _, r := range m.reports {
		if ids != nil && !ids[r.ID] {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.CreatedAt.Before(*filter.To) {
			continue
		}
		if q := strings.ToLower(filter.Query); q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.ReportNumber), q) {
			continue
		}
		report := r
		out = append(out, &report)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && uint64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (m *Memory) Reports(_ context.Context, filter types.ReportFilter) ([]*types.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Reports"); err != nil {
		return nil, err
	}
	return m.filterReports(filter, nil), nil
}

func (m *Memory) ReportsByIDs(_ context.Context, reportIDs []string, filter types.ReportFilter) ([]*types.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ReportsByIDs"); err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(reportIDs))
	for _, id := range reportIDs {
		ids[id] = true
	}
	return m.filterReports(filter, ids), nil
}

func (m *Memory) CreateReport(ctx context.Context, report *types.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateReport"); err != nil {
		return err
	}
	if m.numbers[report.ReportNumber] {
		return types.ErrReportNumberTaken
	}
	m.begin(ctx)
	if report.ID == "" {
		report.ID = utils.NanoID()
	}
	now := m.now()
	report.CreatedAt = now
	report.UpdatedAt = now
	m.reports[report.ID] = *report
	m.numbers[report.ReportNumber] = true
	return nil
}

// ReserveReportNumber marks a report number as taken without a report row.
func (m *Memory) ReserveReportNumber(number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numbers[number] = true
}

func (m *Memory) UpdateReportStatus(ctx context.Context, reportID string, status types.ReportStatus) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateReportStatus"); err != nil {
		return time.Time{}, err
	}
	report, ok := m.reports[reportID]
	if !ok {
		return time.Time{}, types.ErrReportNotFound
	}
	if report.Status == status {
		return time.Time{}, types.ErrStatusConflict
	}
	m.begin(ctx)
	report.Status = status
	report.UpdatedAt = m.now()
	m.reports[reportID] = report
	return report.UpdatedAt, nil
}

func (m *Memory) AppendHistory(ctx context.Context, entry *types.ReportHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AppendHistory"); err != nil {
		return err
	}
	m.begin(ctx)
	entry.ID = utils.NanoID()
	entry.CreatedAt = m.now()
	m.history = append(m.history, *entry)
	return nil
}

func (m *Memory) HistoryByReport(_ context.Context, reportID string) ([]*types.ReportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("HistoryByReport"); err != nil {
		return nil, err
	}
	out := make([]*types.ReportHistory, 0)
	for _, h := range m.history {
		if h.ReportID == reportID {
			entry := h
			out = append(out, &entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateRejection(ctx context.Context, rejection *types.RejectedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateRejection"); err != nil {
		return err
	}
	m.begin(ctx)
	rejection.ID = utils.NanoID()
	rejection.CreatedAt = m.now()
	m.rejections = append(m.rejections, *rejection)
	return nil
}

func (m *Memory) CreateResolution(ctx context.Context, resolution *types.ResolvedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateResolution"); err != nil {
		return err
	}
	m.begin(ctx)
	resolution.ID = utils.NanoID()
	resolution.CreatedAt = m.now()
	m.resolutions = append(m.resolutions, *resolution)
	return nil
}

func (m *Memory) CreateAssignment(ctx context.Context, assignment *types.AssignedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateAssignment"); err != nil {
		return err
	}
	m.begin(ctx)
	assignment.ID = utils.NanoID()
	assignment.CreatedAt = m.now()
	m.assignments = append(m.assignments, *assignment)
	return nil
}

func (m *Memory) CreateEscalation(ctx context.Context, escalation *types.EscalatedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateEscalation"); err != nil {
		return err
	}
	m.begin(ctx)
	escalation.ID = utils.NanoID()
	escalation.CreatedAt = m.now()
	m.escalations = append(m.escalations, *escalation)
	return nil
}

func (m *Memory) LatestAssignment(_ context.Context, reportID string) (*types.AssignedReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("LatestAssignment"); err != nil {
		return nil, err
	}
	for i := len(m.assignments) - 1; i >= 0; i-- {
		if m.assignments[i].ReportID == reportID {
			a := m.assignments[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) AssignedReportIDs(_ context.Context, organizationID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AssignedReportIDs"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, a := range m.assignments {
		if a.OrganizationID == organizationID && !seen[a.ReportID] {
			seen[a.ReportID] = true
			ids = append(ids, a.ReportID)
		}
	}
	return ids, nil
}

func (m *Memory) AssignmentMetrics(_ context.Context, organizationID string) (*types.AssignmentMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AssignmentMetrics"); err != nil {
		return nil, err
	}
	var metrics types.AssignmentMetrics
	for _, a := range m.assignments {
		if a.OrganizationID != organizationID {
			continue
		}
		metrics.Total++
		switch m.reports[a.ReportID].Status {
		case types.ReportStatusResolved:
			metrics.Resolved++
		case types.ReportStatusRejected:
			metrics.Rejected++
		}
	}
	return &metrics, nil
}

// AddCandidate seeds an organization or agency row.
func (m *Memory) AddCandidate(c types.RoutingCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candidates[c.Type] == nil {
		m.candidates[c.Type] = make(map[string]types.RoutingCandidate)
	}
	m.candidates[c.Type][c.ID] = c
}

func (m *Memory) Candidate(_ context.Context, candidateType types.CandidateType, id string) (*types.RoutingCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Candidate"); err != nil {
		return nil, err
	}
	c, ok := m.candidates[candidateType][id]
	if !ok {
		return nil, types.ErrCandidateNotFound
	}
	c.Type = candidateType
	return &c, nil
}

// UpsertCandidate inserts or replaces a candidate row.
func (m *Memory) UpsertCandidate(_ context.Context, candidate *types.RoutingCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpsertCandidate"); err != nil {
		return err
	}
	if m.candidates[candidate.Type] == nil {
		m.candidates[candidate.Type] = make(map[string]types.RoutingCandidate)
	}
	row := *candidate
	now := m.now()
	if existing, ok := m.candidates[candidate.Type][candidate.ID]; ok {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	m.candidates[candidate.Type][candidate.ID] = row
	return nil
}

func (m *Memory) DeleteCandidatesNotIn(_ context.Context, candidateType types.CandidateType, keep []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteCandidatesNotIn"); err != nil {
		return 0, err
	}
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	var deleted int64
	for id := range m.candidates[candidateType] {
		if !kept[id] {
			delete(m.candidates[candidateType], id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) Candidates(_ context.Context, candidateType types.CandidateType) ([]*types.RoutingCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Candidates"); err != nil {
		return nil, err
	}
	out := make([]*types.RoutingCandidate, 0)
	for _, c := range m.candidates[candidateType] {
		candidate := c
		candidate.Type = candidateType
		out = append(out, &candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddRep seeds a representative of an organization or agency.
func (m *Memory) AddRep(candidateType types.CandidateType, entityID, userID string, approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reps[candidateType] = append(m.reps[candidateType], types.Representative{
		ID:         utils.NanoID(),
		UserID:     userID,
		EntityID:   entityID,
		IsApproved: approved,
		CreatedAt:  m.now(),
	})
}

func (m *Memory) ApprovedRepUserIDs(_ context.Context, candidateType types.CandidateType, entityID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ApprovedRepUserIDs"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, rep := range m.reps[candidateType] {
		if rep.EntityID == entityID && rep.IsApproved && !seen[rep.UserID] {
			seen[rep.UserID] = true
			ids = append(ids, rep.UserID)
		}
	}
	return ids, nil
}

func (m *Memory) RepEntityForUser(_ context.Context, candidateType types.CandidateType, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("RepEntityForUser"); err != nil {
		return "", err
	}
	reps := m.reps[candidateType]
	for i := len(reps) - 1; i >= 0; i-- {
		if reps[i].UserID == userID && reps[i].IsApproved {
			return reps[i].EntityID, nil
		}
	}
	return "", nil
}

// AddProfile seeds a profile row.
func (m *Memory) AddProfile(id string, role types.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = types.Profile{ID: id, Role: role, CreatedAt: m.now()}
}

func (m *Memory) Profile(_ context.Context, userID string) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("Profile"); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, types.ErrProfileNotFound
	}
	return &p, nil
}

func (m *Memory) UserIDsByRole(_ context.Context, role types.Role) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UserIDsByRole"); err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for id, p := range m.profiles {
		if p.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) TokensByUsers(_ context.Context, userIDs []string) ([]*types.PushToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("TokensByUsers"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	out := make([]*types.PushToken, 0)
	for _, t := range m.tokens {
		if want[t.UserID] {
			token := t
			out = append(out, &token)
		}
	}
	return out, nil
}

func (m *Memory) RegisterToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("RegisterToken"); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	for i := range m.tokens {
		if m.tokens[i].Token == token {
			m.tokens[i].UserID = userID
			return nil
		}
	}
	m.tokens = append(m.tokens, types.PushToken{ID: utils.NanoID(), UserID: userID, Token: token, CreatedAt: m.now()})
	return nil
}

func (m *Memory) CreateNotifications(ctx context.Context, notifications []*types.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateNotifications"); err != nil {
		return err
	}
	m.begin(ctx)
	now := m.now()
	for _, n := range notifications {
		n.ID = utils.NanoID()
		n.CreatedAt = now
		m.notifications = append(m.notifications, *n)
	}
	return nil
}

func (m *Memory) NotificationsByUser(_ context.Context, userID string, unreadOnly bool, limit uint64) ([]*types.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("NotificationsByUser"); err != nil {
		return nil, err
	}
	out := make([]*types.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, &n)
		if limit > 0 && uint64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

// NotificationsFor returns the persisted rows of one user, oldest first.
func (m *Memory) NotificationsFor(userID string) []types.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (m *Memory) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("MarkNotificationRead"); err != nil {
		return err
	}
	for i := range m.notifications {
		if m.notifications[i].ID == notificationID && m.notifications[i].UserID == userID {
			m.begin(ctx)
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return types.ErrNotificationNotFound
}

func (m *Memory) UnreadCount(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UnreadCount"); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *Memory) EnqueueEvent(ctx context.Context, event *types.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("EnqueueEvent"); err != nil {
		return err
	}
	m.begin(ctx)
	event.ID = utils.NanoID()
	event.Status = types.OutboxStatusPending
	event.Attempts = 0
	event.CreatedAt = m.now()
	if event.Payload != nil {
		event.Payload = append(json.RawMessage(nil), event.Payload...)
	}
	m.outbox = append(m.outbox, *event)
	return nil
}

func (m *Memory) ClaimPendingEvents(_ context.Context, limit uint64) ([]*types.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ClaimPendingEvents"); err != nil {
		return nil, err
	}
	out := make([]*types.OutboxEvent, 0)
	for _, e := range m.outbox {
		if e.Status != types.OutboxStatusPending {
			continue
		}
		event := e
		out = append(out, &event)
		if limit > 0 && uint64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkEventDispatched(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("MarkEventDispatched"); err != nil {
		return err
	}
	m.begin(ctx)
	for i := range m.outbox {
		if m.outbox[i].ID == eventID {
			now := m.now()
			m.outbox[i].Status = types.OutboxStatusDispatched
			m.outbox[i].Attempts++
			m.outbox[i].DispatchedAt = &now
			m.outbox[i].LastError = nil
		}
	}
	return nil
}

func (m *Memory) MarkEventAttemptFailed(ctx context.Context, eventID string, cause error, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("MarkEventAttemptFailed"); err != nil {
		return err
	}
	m.begin(ctx)
	for i := range m.outbox {
		if m.outbox[i].ID != eventID {
			continue
		}
		m.outbox[i].Attempts++
		msg := "unknown error"
		if cause != nil {
			msg = cause.Error()
		}
		m.outbox[i].LastError = &msg
		if m.outbox[i].Attempts >= maxAttempts {
			m.outbox[i].Status = types.OutboxStatusFailed
		}
	}
	return nil
}

// Events returns a copy of the outbox, oldest first.
func (m *Memory) Events() []types.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.OutboxEvent(nil), m.outbox...)
}

// HistoryFor returns the history rows of one report, oldest first.
func (m *Memory) HistoryFor(reportID string) []types.ReportHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ReportHistory, 0)
	for _, h := range m.history {
		if h.ReportID == reportID {
			out = append(out, h)
		}
	}
	return out
}

func (m *Memory) Rejections() []types.RejectedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.RejectedReport(nil), m.rejections...)
}

func (m *Memory) Resolutions() []types.ResolvedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ResolvedReport(nil), m.resolutions...)
}

func (m *Memory) Assignments() []types.AssignedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AssignedReport(nil), m.assignments...)
}

func (m *Memory) Escalations() []types.EscalatedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.EscalatedReport(nil), m.escalations...)
}

// PutReport stores a report as-is, bypassing report number checks.
func (m *Memory) PutReport(report types.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = m.now()
		report.UpdatedAt = report.CreatedAt
	}
	m.reports[report.ID] = report
	m.numbers[report.ReportNumber] = true
}

// AddToken seeds a device token.
func (m *Memory) AddToken(userID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, types.PushToken{ID: utils.NanoID(), UserID: userID, Token: token, CreatedAt: m.now()})
}
