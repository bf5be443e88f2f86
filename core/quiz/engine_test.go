package quiz

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeMock struct {
	mu       sync.Mutex
	saved    []Attempt
	count    int
	saveErr  error
	countErr error
}

func (s *storeMock) SaveAttempt(att Attempt) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return Attempt{}, s.saveErr
	}
	s.saved = append(s.saved, att)
	return att, nil
}

func (s *storeMock) CountAttempts(filter AttemptFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.countErr
}

func (s *storeMock) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type notifierMock struct {
	mu       sync.Mutex
	messages []string
}

func (n *notifierMock) Notify(userID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func testQuiz() Quiz {
	qz := Quiz{
		ID:           "quiz1",
		Title:        "N5 Particles",
		Level:        LevelN5,
		Duration:     1,
		PassingScore: 70,
		Questions: []Question{
			mcq("q1", 10, "B", "A", "B"),
			mcq("q2", 10, "A", "A", "B"),
			{ID: "q3", Type: TypeMatching, Correct: ListAnswer("a", "b", "c"), Points: 9},
		},
	}
	qz.RecomputeTotalPoints()
	return qz
}

func TestEngineLifecycle(t *testing.T) {
	store := &storeMock{}
	eng := NewEngine("user1", store, nil, nopLogger{})

	assert.Equal(t, StateIdle, eng.State())
	assert.True(t, eng.Submit().CompletedAt.IsZero()) // idle submit is a no-op

	require.NoError(t, eng.Start(testQuiz()))
	assert.Equal(t, StateActive, eng.State())
	assert.Equal(t, 60, eng.Remaining())
	assert.Equal(t, 0, eng.Cursor())

	// starting again while active is ignored
	require.NoError(t, eng.Start(testQuiz()))
	assert.Equal(t, StateActive, eng.State())

	q, ok := eng.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, "q1", q.ID)

	eng.SubmitAnswer("q1", SingleAnswer("B"))
	eng.SubmitAnswer("q1", SingleAnswer("A")) // overwrite
	eng.Next()
	eng.Next()
	eng.Next() // clamped at last question
	assert.Equal(t, 2, eng.Cursor())
	eng.Prev()
	assert.Equal(t, 1, eng.Cursor())

	att := eng.Submit()
	assert.Equal(t, StateCompleted, eng.State())
	assert.Equal(t, "quiz1", att.QuizID)
	assert.Equal(t, "user1", att.UserID)
	assert.InDelta(t, 0.0, att.Score, 1e-9) // overwritten to the wrong answer
	assert.Equal(t, 1, att.Incorrect)
	assert.Equal(t, 2, att.Skipped)
	assert.False(t, att.Passed)
	assert.False(t, att.CompletedAt.IsZero())
	assert.Equal(t, 1, store.savedCount())

	// navigation and answers are ignored after completion
	eng.SubmitAnswer("q2", SingleAnswer("A"))
	eng.Next()
	assert.Equal(t, 1, eng.Cursor())
}

func TestEngineSubmitIdempotent(t *testing.T) {
	store := &storeMock{}
	eng := NewEngine("user1", store, nil, nopLogger{})
	require.NoError(t, eng.Start(testQuiz()))

	eng.SubmitAnswer("q1", SingleAnswer("B"))
	eng.SubmitAnswer("q2", SingleAnswer("A"))
	eng.SubmitAnswer("q3", ListAnswer("a", "b", "c"))

	first := eng.Submit()
	second := eng.Submit()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.savedCount())
	assert.InDelta(t, 29.0, first.Score, 1e-9)
	assert.Equal(t, 100, first.Percentage)
	assert.True(t, first.Passed)
	assert.Equal(t, 3, first.Correct)
}

func TestEngineRequiresUser(t *testing.T) {
	store := &storeMock{}
	eng := NewEngine("", store, nil, nopLogger{})

	require.NoError(t, eng.Start(testQuiz()))
	assert.Equal(t, StateIdle, eng.State())
}

func TestEngineMaxAttempts(t *testing.T) {
	store := &storeMock{count: 3}
	eng := NewEngine("user1", store, nil, nopLogger{})

	qz := testQuiz()
	qz.MaxAttempts = 3
	err := eng.Start(qz)
	assert.Equal(t, ErrMaxAttempts, err)
	assert.Equal(t, StateIdle, eng.State())

	// no limit configured: prior attempts are irrelevant
	require.NoError(t, eng.Start(testQuiz()))
	assert.Equal(t, StateActive, eng.State())
}

func TestEngineTimeoutAutoSubmits(t *testing.T) {
	origTick := tickInterval
	tickInterval = time.Millisecond
	defer func() { tickInterval = origTick }()

	store := &storeMock{}
	notifier := &notifierMock{}
	eng := NewEngine("user1", store, notifier, nopLogger{})
	require.NoError(t, eng.Start(testQuiz()))
	eng.SubmitAnswer("q1", SingleAnswer("B"))

	deadline := time.Now().Add(2 * time.Second)
	for eng.State() != StateCompleted {
		if time.Now().After(deadline) {
			t.Fatal("countdown never auto-submitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	att := eng.Attempt()
	assert.Equal(t, 0, eng.Remaining())
	assert.Equal(t, 60, att.TimeSpent) // full duration elapsed
	assert.InDelta(t, 10.0, att.Score, 1e-9)
	assert.False(t, att.CompletedAt.IsZero())
	assert.Equal(t, 1, store.savedCount())

	// a late manual submit just echoes the finalized attempt
	assert.Equal(t, att, eng.Submit())
	assert.Equal(t, 1, store.savedCount())
}

func TestEngineSaveFailureKeepsResult(t *testing.T) {
	store := &storeMock{saveErr: errors.New("db down")}
	notifier := &notifierMock{}
	eng := NewEngine("user1", store, notifier, nopLogger{})
	require.NoError(t, eng.Start(testQuiz()))
	eng.SubmitAnswer("q1", SingleAnswer("B"))

	att := eng.Submit()
	assert.Equal(t, StateCompleted, eng.State())
	assert.InDelta(t, 10.0, att.Score, 1e-9) // graded result survives the failure
	assert.Equal(t, 0, store.savedCount())
	assert.Len(t, notifier.messages, 1)
}

func TestEngineReset(t *testing.T) {
	store := &storeMock{}
	eng := NewEngine("user1", store, nil, nopLogger{})
	require.NoError(t, eng.Start(testQuiz()))
	eng.SubmitAnswer("q1", SingleAnswer("B"))

	eng.Reset()
	assert.Equal(t, StateIdle, eng.State())
	assert.Equal(t, 0, eng.Remaining())
	assert.True(t, eng.Attempt().StartedAt.IsZero())

	// a fresh attempt starts clean
	require.NoError(t, eng.Start(testQuiz()))
	assert.Empty(t, eng.Attempt().Answers)
	att := eng.Submit()
	assert.Equal(t, 3, att.Skipped)
}
