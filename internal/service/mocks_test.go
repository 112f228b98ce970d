package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/llm"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// mockStore is an in-memory implementation of every repository interface,
// shared by the service tests. Error fields inject failures per call site.
type mockStore struct {
	mu sync.Mutex

	profiles      map[string]*model.Profile
	notes         []model.LoveNote
	notifications []model.Notification
	activity      []model.ActivityEvent
	entries       map[string]*model.DictionaryEntry
	scores        map[string]*model.WordScore // key userID|wordID
	sessions      []model.GameSession
	unlocks       []model.AchievementUnlock
	usage         map[string]int // key userID|type|date
	invites       map[string]*model.Invite
	requests      map[string]*model.ChallengeRequest
	challenges    map[string]*model.Challenge

	nextID int

	usageSumErr error
	countErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles:   make(map[string]*model.Profile),
		entries:    make(map[string]*model.DictionaryEntry),
		scores:     make(map[string]*model.WordScore),
		usage:      make(map[string]int),
		invites:    make(map[string]*model.Invite),
		requests:   make(map[string]*model.ChallengeRequest),
		challenges: make(map[string]*model.Challenge),
	}
}

func (m *mockStore) id() string {
	m.nextID++
	return fmt.Sprintf("mock-%d", m.nextID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- ProfileRepository ---

func (m *mockStore) CreateProfile(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.profiles {
		if existing.Email == p.Email {
			return errors.New("unique constraint: email")
		}
	}
	if p.ID == "" {
		p.ID = m.id()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	stored := *p
	m.profiles[p.ID] = &stored
	return nil
}

func (m *mockStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	out := *p
	return &out, nil
}

func (m *mockStore) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			out := *p
			return &out, nil
		}
	}
	return nil, apperror.NotFound("profile", email)
}

func (m *mockStore) UpdateProfile(_ context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return apperror.NotFound("profile", p.ID)
	}
	stored := *p
	m.profiles[p.ID] = &stored
	return nil
}

func (m *mockStore) ChooseFreeTier(_ context.Context, id string, chosenAt, trialExpiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, apperror.NotFound("profile", id)
	}
	if p.FreeTierChosenAt != nil {
		return false, nil
	}
	p.FreeTierChosenAt = &chosenAt
	p.TrialExpiresAt = &trialExpiresAt
	return true, nil
}

func (m *mockStore) SetAppleRefreshToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return apperror.NotFound("profile", id)
	}
	p.AppleRefreshToken = token
	return nil
}

func (m *mockStore) LinkProfiles(_ context.Context, userID, partnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, okA := m.profiles[userID]
	b, okB := m.profiles[partnerID]
	if !okA || !okB {
		return apperror.NotFound("profile", userID)
	}
	a.LinkedUserID = partnerID
	b.LinkedUserID = userID
	return nil
}

func (m *mockStore) DelinkProfiles(_ context.Context, userID, partnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		p.LinkedUserID = ""
		p.SubscriptionGrantedBy = ""
	}
	if p, ok := m.profiles[partnerID]; ok {
		p.LinkedUserID = ""
		p.SubscriptionGrantedBy = ""
	}
	return nil
}

// --- DictionaryRepository ---

func (m *mockStore) CreateEntry(_ context.Context, e *model.DictionaryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.id()
	}
	stored := *e
	m.entries[e.ID] = &stored
	return nil
}

func (m *mockStore) ListEntries(_ context.Context, userID, lang string, limit int) ([]model.DictionaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DictionaryEntry
	for _, e := range m.entries {
		if e.UserID == userID && e.LanguageCode == lang {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.After(out[j].UnlockedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) CountEntries(_ context.Context, userID, lang string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.LanguageCode == lang {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) GetEntriesByIDs(_ context.Context, userID string, ids []string) ([]model.DictionaryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DictionaryEntry
	for _, id := range ids {
		if e, ok := m.entries[id]; ok && e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockStore) ListScores(_ context.Context, userID, lang string) ([]model.WordScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WordScore
	for _, s := range m.scores {
		if s.UserID == userID && s.LanguageCode == lang {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStore) GetScore(_ context.Context, userID, wordID string) (*model.WordScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[userID+"|"+wordID]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *mockStore) UpsertScore(_ context.Context, s *model.WordScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *s
	m.scores[s.UserID+"|"+s.WordID] = &stored
	return nil
}

// --- LoveNoteRepository ---

func (m *mockStore) CreateLoveNote(_ context.Context, n *model.LoveNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = m.id()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notes = append(m.notes, *n)
	return nil
}

func (m *mockStore) CountLoveNotesSince(_ context.Context, senderID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, note := range m.notes {
		if note.SenderID == senderID && !note.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ListLoveNotesForCouple(_ context.Context, userID, partnerID string, opts repository.ListOptions) ([]model.LoveNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LoveNote
	for _, n := range m.notes {
		if (n.SenderID == userID && n.RecipientID == partnerID) ||
			(n.SenderID == partnerID && n.RecipientID == userID) {
			out = append(out, n)
		}
	}
	return out, nil
}

// --- NotificationRepository ---

func (m *mockStore) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = m.id()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockStore) ListNotifications(_ context.Context, userID string, _ repository.ListOptions) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockStore) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, x := range m.notifications {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) MarkNotificationsRead(_ context.Context, userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for i := range m.notifications {
		if m.notifications[i].UserID != userID {
			continue
		}
		if len(ids) == 0 || want[m.notifications[i].ID] {
			m.notifications[i].Read = true
		}
	}
	return nil
}

func (m *mockStore) CreateActivity(_ context.Context, e *model.ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.id()
	}
	m.activity = append(m.activity, *e)
	return nil
}

func (m *mockStore) ListActivity(_ context.Context, userID string, _ repository.ListOptions) ([]model.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActivityEvent
	for _, e := range m.activity {
		if e.UserID == userID || e.PartnerID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- ChallengeRepository ---

func (m *mockStore) CreateRequest(_ context.Context, r *model.ChallengeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = m.id()
	}
	if r.Status == "" {
		r.Status = model.RequestPending
	}
	stored := *r
	m.requests[r.ID] = &stored
	return nil
}

func (m *mockStore) PendingRequestForStudent(_ context.Context, studentID string) (*model.ChallengeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.StudentID == studentID && r.Status == model.RequestPending {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetRequest(_ context.Context, id string) (*model.ChallengeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperror.NotFound("challenge request", id)
	}
	out := *r
	return &out, nil
}

func (m *mockStore) ListRequestsForTutor(_ context.Context, tutorID string, _ repository.ListOptions) ([]model.ChallengeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChallengeRequest
	for _, r := range m.requests {
		if r.TutorID == tutorID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateRequestStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return apperror.NotFound("challenge request", id)
	}
	r.Status = status
	return nil
}

func (m *mockStore) CreateChallenge(_ context.Context, c *model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.id()
	}
	if c.Status == "" {
		c.Status = model.ChallengeAssigned
	}
	stored := *c
	m.challenges[c.ID] = &stored
	return nil
}

func (m *mockStore) GetChallenge(_ context.Context, id string) (*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, apperror.NotFound("challenge", id)
	}
	out := *c
	return &out, nil
}

func (m *mockStore) ListChallengesForStudent(_ context.Context, studentID string, _ repository.ListOptions) ([]model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Challenge
	for _, c := range m.challenges {
		if c.StudentID == studentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateChallenge(_ context.Context, c *model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[c.ID]; !ok {
		return apperror.NotFound("challenge", c.ID)
	}
	stored := *c
	m.challenges[c.ID] = &stored
	return nil
}

// --- GameRepository ---

func (m *mockStore) CreateSession(_ context.Context, s *model.GameSession, answers []model.GameAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.id()
	}
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *mockStore) ListSessions(_ context.Context, userID string, _ repository.ListOptions) ([]model.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GameSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) CountSessions(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ListUnlocks(_ context.Context, userID string) ([]model.AchievementUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AchievementUnlock
	for _, u := range m.unlocks {
		if u.UserID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockStore) CreateUnlock(_ context.Context, u *model.AchievementUnlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.unlocks {
		if existing.UserID == u.UserID && existing.Key == u.Key {
			return nil
		}
	}
	if u.ID == "" {
		u.ID = m.id()
	}
	if u.UnlockedAt.IsZero() {
		u.UnlockedAt = time.Now()
	}
	m.unlocks = append(m.unlocks, *u)
	return nil
}

// --- UsageRepository ---

func (m *mockStore) IncrementUsage(_ context.Context, userID, usageType, day string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[userID+"|"+usageType+"|"+day] += amount
	return nil
}

func (m *mockStore) SumUsageRange(_ context.Context, userID, usageType, fromDate, toDate string) (int, error) {
	if m.usageSumErr != nil {
		return 0, m.usageSumErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for key, n := range m.usage {
		parts := splitKey(key)
		uid, ut, date := parts[0], parts[1], parts[2]
		if uid == userID && ut == usageType && date >= fromDate && date < toDate {
			total += n
		}
	}
	return total, nil
}

func splitKey(key string) [3]string {
	var out [3]string
	i := 0
	start := 0
	for j := 0; j < len(key) && i < 2; j++ {
		if key[j] == '|' {
			out[i] = key[start:j]
			start = j + 1
			i++
		}
	}
	out[2] = key[start:]
	return out
}

// --- InviteRepository ---

func (m *mockStore) CreateInvite(_ context.Context, i *model.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	stored := *i
	m.invites[i.Code] = &stored
	return nil
}

func (m *mockStore) GetInvite(_ context.Context, code string) (*model.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.invites[code]
	if !ok {
		return nil, apperror.NotFound("invite", code)
	}
	out := *i
	return &out, nil
}

func (m *mockStore) MarkInviteUsed(_ context.Context, code, usedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.invites[code]
	if !ok || i.UsedBy != "" {
		return apperror.Conflict("invite", code)
	}
	i.UsedBy = usedBy
	i.UsedAt = &at
	return nil
}

// --- fake LLM client ---

type fakeLLM struct {
	reply  string
	chunks []string
	err    error
	calls  int
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Stream(_ context.Context, _ llm.Request, emit func(string) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

// newAccessService wires an AccessService over the store with a fixed clock.
func newAccessService(store *mockStore, now time.Time) *AccessService {
	svc := NewAccessService(store, store, DefaultLimits(), map[string]time.Duration{
		"LOVEPROMO": 30 * 24 * time.Hour,
	}, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func seedProfile(t *testing.T, store *mockStore, mutate func(*model.Profile)) *model.Profile {
	t.Helper()
	p := &model.Profile{
		Email:          fmt.Sprintf("user%d@example.com", store.nextID+1),
		Role:           model.RoleStudent,
		NativeLanguage: "en",
		ActiveLanguage: "pl",
		CreatedAt:      time.Now().Add(-48 * time.Hour),
	}
	if mutate != nil {
		mutate(p)
	}
	if err := store.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("seeding profile: %v", err)
	}
	return p
}
