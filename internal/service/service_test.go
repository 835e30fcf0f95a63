package service

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/grading"
	"assessment_backend/internal/repository"
	"assessment_backend/pkg/database"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []CompletionEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev CompletionEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []CompletionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]CompletionEvent(nil), n.events...)
}

type testEnv struct {
	db       *gorm.DB
	clock    *fakeClock
	notifier *recordingNotifier
	contents *ContentService
	attempts *AttemptService
	expiry   *ExpiryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	reg := grading.NewRegistry()
	contentRepo := repository.NewContentRepository(db)
	notifier := &recordingNotifier{}
	attempts := NewAttemptService(
		db,
		contentRepo,
		repository.NewAttemptRepository(db),
		repository.NewSubmissionRepository(db),
		reg,
		nil,
		notifier,
		PolicyFromConfig(&config.AssessmentConfig{TimeToleranceSeconds: 2, LateSubmissionPolicy: config.LatePolicyCap}),
	)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	attempts.Clock = clock.Now

	return &testEnv{
		db:       db,
		clock:    clock,
		notifier: notifier,
		contents: NewContentService(db, contentRepo, reg),
		attempts: attempts,
		expiry:   NewExpiryService(attempts),
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

// fourChoiceQuiz has four single-answer items whose correct option is 0.
func fourChoiceQuiz() *ContentInput {
	in := &ContentInput{
		Title:        "Chapter 1 quiz",
		Kind:         grading.KindQuiz,
		MaxAttempts:  3,
		PassingScore: floatPtr(70),
	}
	for _, id := range []string{"q1", "q2", "q3", "q4"} {
		in.Items = append(in.Items, ItemInput{
			ID:     id,
			Type:   grading.MultipleChoice,
			Points: floatPtr(1),
			Spec:   rawJSON(`{"options":["a","b","c"],"correctIndex":0}`),
		})
	}
	return in
}
