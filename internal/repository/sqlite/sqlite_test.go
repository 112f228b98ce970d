package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// newTestDB opens an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestProfile inserts a profile and fails the test on error.
func createTestProfile(t *testing.T, db *DB, email string) *model.Profile {
	t.Helper()
	p := &model.Profile{
		Email:          email,
		PasswordHash:   "x",
		FullName:       "Test User",
		Role:           model.RoleStudent,
		NativeLanguage: "en",
		ActiveLanguage: "pl",
	}
	if err := db.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("creating test profile: %v", err)
	}
	return p
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestProfileCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	created := createTestProfile(t, db, "amelie@example.com")

	if created.ID == "" {
		t.Fatal("CreateProfile() did not set ID")
	}

	found, err := db.GetProfile(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if found.Email != "amelie@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "amelie@example.com")
	}
	if found.ActiveLanguage != "pl" {
		t.Errorf("ActiveLanguage = %q, want %q", found.ActiveLanguage, "pl")
	}
}

func TestProfileGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProfile(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want ErrNotFound", err)
	}
}

func TestProfileGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestProfile(t, db, "lookup@example.com")

	found, err := db.GetProfileByEmail(context.Background(), "lookup@example.com")
	if err != nil {
		t.Fatalf("GetProfileByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestProfileCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "dupe@example.com")

	err := db.CreateProfile(context.Background(), &model.Profile{Email: "dupe@example.com"})
	if err == nil {
		t.Fatal("CreateProfile() should fail on duplicate email")
	}
}

func TestChooseFreeTier_GuardFiresOnce(t *testing.T) {
	db := newTestDB(t)
	p := createTestProfile(t, db, "freetier@example.com")

	now := time.Now()
	trial := now.Add(7 * 24 * time.Hour)

	ok, err := db.ChooseFreeTier(context.Background(), p.ID, now, trial)
	if err != nil {
		t.Fatalf("ChooseFreeTier() first call: %v", err)
	}
	if !ok {
		t.Fatal("ChooseFreeTier() first call should succeed")
	}

	// Second call must hit the NULL guard and report no rows changed.
	ok, err = db.ChooseFreeTier(context.Background(), p.ID, now, trial)
	if err != nil {
		t.Fatalf("ChooseFreeTier() second call: %v", err)
	}
	if ok {
		t.Error("ChooseFreeTier() second call should not change any row")
	}

	found, err := db.GetProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProfile(): %v", err)
	}
	if found.FreeTierChosenAt == nil {
		t.Error("FreeTierChosenAt not persisted")
	}
	if found.TrialExpiresAt == nil {
		t.Error("TrialExpiresAt not persisted")
	}
}

func TestLinkAndDelinkProfiles(t *testing.T) {
	db := newTestDB(t)
	a := createTestProfile(t, db, "a@example.com")
	b := createTestProfile(t, db, "b@example.com")

	if err := db.LinkProfiles(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("LinkProfiles(): %v", err)
	}

	gotA, _ := db.GetProfile(context.Background(), a.ID)
	gotB, _ := db.GetProfile(context.Background(), b.ID)
	if gotA.LinkedUserID != b.ID {
		t.Errorf("a.LinkedUserID = %q, want %q", gotA.LinkedUserID, b.ID)
	}
	if gotB.LinkedUserID != a.ID {
		t.Errorf("b.LinkedUserID = %q, want %q", gotB.LinkedUserID, a.ID)
	}

	if err := db.DelinkProfiles(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("DelinkProfiles(): %v", err)
	}
	gotA, _ = db.GetProfile(context.Background(), a.ID)
	if gotA.LinkedUserID != "" {
		t.Errorf("a.LinkedUserID after delink = %q, want empty", gotA.LinkedUserID)
	}
}

// =========================================================================
// LOVE NOTE TESTS
// =========================================================================

func TestLoveNoteCountSince(t *testing.T) {
	db := newTestDB(t)
	sender := createTestProfile(t, db, "sender@example.com")
	recipient := createTestProfile(t, db, "recipient@example.com")

	dayStart := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		note := &model.LoveNote{
			SenderID:         sender.ID,
			RecipientID:      recipient.ID,
			TemplateCategory: "encouragement",
			TemplateText:     "You're doing great!",
		}
		if err := db.CreateLoveNote(context.Background(), note); err != nil {
			t.Fatalf("CreateLoveNote(): %v", err)
		}
	}

	n, err := db.CountLoveNotesSince(context.Background(), sender.ID, dayStart)
	if err != nil {
		t.Fatalf("CountLoveNotesSince(): %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	// Recipient has sent nothing.
	n, err = db.CountLoveNotesSince(context.Background(), recipient.ID, dayStart)
	if err != nil {
		t.Fatalf("CountLoveNotesSince(): %v", err)
	}
	if n != 0 {
		t.Errorf("recipient count = %d, want 0", n)
	}
}

func TestLoveNoteListCouple_BothDirections(t *testing.T) {
	db := newTestDB(t)
	a := createTestProfile(t, db, "ca@example.com")
	b := createTestProfile(t, db, "cb@example.com")

	db.CreateLoveNote(context.Background(), &model.LoveNote{
		SenderID: a.ID, RecipientID: b.ID, TemplateText: "from a",
	})
	db.CreateLoveNote(context.Background(), &model.LoveNote{
		SenderID: b.ID, RecipientID: a.ID, TemplateText: "from b",
	})

	notes, err := db.ListLoveNotesForCouple(context.Background(), a.ID, b.ID,
		repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListLoveNotesForCouple(): %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2", len(notes))
	}
}

// =========================================================================
// USAGE TESTS
// =========================================================================

func TestUsageIncrementAndSum(t *testing.T) {
	db := newTestDB(t)
	p := createTestProfile(t, db, "usage@example.com")
	ctx := context.Background()

	// Two increments on the same day must accumulate in one row.
	if err := db.IncrementUsage(ctx, p.ID, "chat_messages", "2026-08-10", 1); err != nil {
		t.Fatalf("IncrementUsage(): %v", err)
	}
	if err := db.IncrementUsage(ctx, p.ID, "chat_messages", "2026-08-10", 2); err != nil {
		t.Fatalf("IncrementUsage(): %v", err)
	}
	if err := db.IncrementUsage(ctx, p.ID, "chat_messages", "2026-08-15", 5); err != nil {
		t.Fatalf("IncrementUsage(): %v", err)
	}

	n, err := db.SumUsageRange(ctx, p.ID, "chat_messages", "2026-08-01", "2026-09-01")
	if err != nil {
		t.Fatalf("SumUsageRange(): %v", err)
	}
	if n != 8 {
		t.Errorf("sum = %d, want 8", n)
	}

	// Upper bound is exclusive.
	n, err = db.SumUsageRange(ctx, p.ID, "chat_messages", "2026-08-01", "2026-08-15")
	if err != nil {
		t.Fatalf("SumUsageRange(): %v", err)
	}
	if n != 3 {
		t.Errorf("sum before 08-15 = %d, want 3", n)
	}

	// Different usage type is a separate counter.
	n, err = db.SumUsageRange(ctx, p.ID, "tts_requests", "2026-08-01", "2026-09-01")
	if err != nil {
		t.Fatalf("SumUsageRange(): %v", err)
	}
	if n != 0 {
		t.Errorf("tts sum = %d, want 0", n)
	}
}

// =========================================================================
// ACHIEVEMENT TESTS
// =========================================================================

func TestCreateUnlock_Idempotent(t *testing.T) {
	db := newTestDB(t)
	p := createTestProfile(t, db, "achieve@example.com")
	ctx := context.Background()

	u1 := &model.AchievementUnlock{UserID: p.ID, Key: "first_word"}
	if err := db.CreateUnlock(ctx, u1); err != nil {
		t.Fatalf("CreateUnlock() first: %v", err)
	}

	u2 := &model.AchievementUnlock{UserID: p.ID, Key: "first_word"}
	if err := db.CreateUnlock(ctx, u2); err != nil {
		t.Fatalf("CreateUnlock() repeat: %v", err)
	}

	unlocks, err := db.ListUnlocks(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListUnlocks(): %v", err)
	}
	if len(unlocks) != 1 {
		t.Errorf("len(unlocks) = %d, want 1", len(unlocks))
	}
}

// =========================================================================
// INVITE TESTS
// =========================================================================

func TestInviteSingleUse(t *testing.T) {
	db := newTestDB(t)
	inviter := createTestProfile(t, db, "inviter@example.com")
	ctx := context.Background()

	inv := &model.Invite{Code: "code-123", InviterID: inviter.ID, Role: model.RoleTutor}
	if err := db.CreateInvite(ctx, inv); err != nil {
		t.Fatalf("CreateInvite(): %v", err)
	}

	if err := db.MarkInviteUsed(ctx, "code-123", "someone", time.Now()); err != nil {
		t.Fatalf("MarkInviteUsed() first: %v", err)
	}

	err := db.MarkInviteUsed(ctx, "code-123", "someone-else", time.Now())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("MarkInviteUsed() second error = %v, want ErrConflict", err)
	}

	got, err := db.GetInvite(ctx, "code-123")
	if err != nil {
		t.Fatalf("GetInvite(): %v", err)
	}
	if got.UsedBy != "someone" {
		t.Errorf("UsedBy = %q, want %q", got.UsedBy, "someone")
	}
}

// =========================================================================
// CHALLENGE REQUEST TESTS
// =========================================================================

func TestGetRequest_ByID(t *testing.T) {
	db := newTestDB(t)
	student := createTestProfile(t, db, "cr-student@example.com")
	tutor := createTestProfile(t, db, "cr-tutor@example.com")
	ctx := context.Background()

	r := &model.ChallengeRequest{
		StudentID:   student.ID,
		TutorID:     tutor.ID,
		RequestType: model.RequestSpecificWords,
		WordIDs:     []string{"w1", "w2"},
	}
	if err := db.CreateRequest(ctx, r); err != nil {
		t.Fatalf("CreateRequest(): %v", err)
	}

	got, err := db.GetRequest(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRequest(): %v", err)
	}
	if got.TutorID != tutor.ID {
		t.Errorf("TutorID = %q, want %q", got.TutorID, tutor.ID)
	}
	if len(got.WordIDs) != 2 {
		t.Errorf("len(WordIDs) = %d, want 2", len(got.WordIDs))
	}

	_, err = db.GetRequest(ctx, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetRequest(missing) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// GAME SESSION TESTS
// =========================================================================

func TestCreateSession_WithAnswers(t *testing.T) {
	db := newTestDB(t)
	p := createTestProfile(t, db, "gamer@example.com")
	ctx := context.Background()

	s := &model.GameSession{
		UserID:       p.ID,
		GameType:     "quick_fire",
		LanguageCode: "pl",
		Correct:      2,
		Total:        3,
		XPAwarded:    20,
	}
	answers := []model.GameAnswer{
		{WordID: "w1", Answer: "kot", Correct: true},
		{WordID: "w2", Answer: "pies", Correct: true},
		{WordID: "w3", Answer: "dom", Correct: false},
	}
	if err := db.CreateSession(ctx, s, answers); err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}

	sessions, err := db.ListSessions(ctx, p.ID, repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListSessions(): %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].Correct != 2 || sessions[0].Total != 3 {
		t.Errorf("session = %d/%d, want 2/3", sessions[0].Correct, sessions[0].Total)
	}

	n, err := db.CountSessions(ctx, p.ID)
	if err != nil {
		t.Fatalf("CountSessions(): %v", err)
	}
	if n != 1 {
		t.Errorf("CountSessions() = %d, want 1", n)
	}
}
