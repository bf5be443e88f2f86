package quiz

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-school/kotoba/core"
)

// engine state machine: idle → active → completed, active → idle on reset.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

var (
	nowFunc      = time.Now        // mockable
	tickInterval = 1 * time.Second // mockable
)

type (
	// AttemptStore persists finalized attempts. Engine ownership of the
	// attempt ends at SaveAttempt; a failure there is reported, never rolled
	// back into engine state.
	AttemptStore interface {
		SaveAttempt(att Attempt) (Attempt, error)
		CountAttempts(filter AttemptFilter) (int, error)
	}

	// Notifier surfaces user-facing notices (e.g. a failed attempt save).
	Notifier interface {
		Notify(userID, message string)
	}

	// Engine runs one user's quiz session: question navigation, answer
	// capture, the per-second countdown and at-most-once finalization.
	// All state is owned by the engine and guarded by one mutex; the only
	// concurrent writer is the countdown goroutine the engine itself owns.
	Engine struct {
		mu        sync.Mutex
		state     State
		userID    string
		quiz      Quiz
		attempt   Attempt
		cursor    int
		remaining int // seconds
		stopTick  chan struct{}

		store    AttemptStore
		notifier Notifier
		logger   core.Logger
	}
)

func NewEngine(userID string, store AttemptStore, notifier Notifier, logger core.Logger) *Engine {
	return &Engine{
		userID:   userID,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins a fresh attempt. It is a no-op while a quiz is already
// active, requires a known user, and enforces the quiz's attempt limit.
func (e *Engine) Start(qz Quiz) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == "" || e.state == StateActive {
		return nil
	}

	if qz.MaxAttempts > 0 {
		count, err := e.store.CountAttempts(AttemptFilter{QuizID: qz.ID, UserID: e.userID})
		if err != nil {
			return err
		}
		if count >= qz.MaxAttempts {
			return ErrMaxAttempts
		}
	}

	e.quiz = qz
	e.attempt = Attempt{
		ID:          uuid.New().String(),
		QuizID:      qz.ID,
		UserID:      e.userID,
		Answers:     make(map[string]Answer),
		TotalPoints: qz.TotalPoints,
		StartedAt:   nowFunc().UTC(),
	}
	e.cursor = 0
	e.remaining = qz.Duration * 60
	e.state = StateActive

	e.stopTick = make(chan struct{})
	go e.countdown(e.stopTick)
	return nil
}

// countdown decrements the remaining time once per tick while active.
// Reaching zero forces submission with whatever answers exist, producing a
// result identical to a manual submit.
func (e *Engine) countdown(stop chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.state != StateActive {
				e.mu.Unlock()
				return
			}
			e.remaining--
			if e.remaining <= 0 {
				e.remaining = 0
				e.finalize()
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
		}
	}
}

// SubmitAnswer records (or overwrites) the answer for a question. Answers
// are not validated against the question type here; that is the caller's
// job. Ignored unless a quiz is active.
func (e *Engine) SubmitAnswer(questionID string, ans Answer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return
	}
	e.attempt.Answers[questionID] = ans
}

// Next moves the question cursor forward, clamped to the last question.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return
	}
	if e.cursor < len(e.quiz.Questions)-1 {
		e.cursor++
	}
}

// Prev moves the question cursor back, clamped to the first question.
func (e *Engine) Prev() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive {
		return
	}
	if e.cursor > 0 {
		e.cursor--
	}
}

// Submit finalizes the attempt. Submitting while completed returns the
// already-finalized attempt unchanged (at-most-once finalization: the
// countdown and a user action may race to this point); submitting while
// idle returns a zero attempt.
func (e *Engine) Submit() Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateActive:
		e.finalize()
	case StateCompleted:
	default:
		return Attempt{}
	}
	return e.attempt
}

// finalize grades and persists the attempt. Callers must hold e.mu and have
// checked state == StateActive (or be the timeout path, which guarantees it).
func (e *Engine) finalize() {
	sum := scoreAttempt(e.quiz, e.attempt.Answers)
	e.attempt.Score = sum.score
	e.attempt.Correct = sum.correct
	e.attempt.Incorrect = sum.incorrect
	e.attempt.Skipped = sum.skipped
	e.attempt.Percentage = percentage(sum.score, e.attempt.TotalPoints)
	e.attempt.Passed = e.attempt.Percentage >= e.quiz.PassingScore
	e.attempt.TimeSpent = e.quiz.Duration*60 - e.remaining
	e.attempt.CompletedAt = nowFunc().UTC()
	e.state = StateCompleted
	e.stopCountdown()

	// pessimistic persistence, optimistic completion: the graded result
	// stands locally even when the save fails
	if saved, err := e.store.SaveAttempt(e.attempt); err != nil {
		e.logger.Error(fmt.Sprintf("saving attempt %s: %v", e.attempt.ID, err), err)
		if e.notifier != nil {
			e.notifier.Notify(e.userID, "Your result could not be saved. It is still shown below.")
		}
	} else {
		e.attempt = saved
	}
}

// Reset discards any unsubmitted attempt and returns to idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCountdown()
	e.state = StateIdle
	e.quiz = Quiz{}
	e.attempt = Attempt{}
	e.cursor = 0
	e.remaining = 0
}

func (e *Engine) stopCountdown() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// CurrentQuestion returns the question under the cursor; ok is false when
// no quiz is active.
func (e *Engine) CurrentQuestion() (Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateActive || e.cursor >= len(e.quiz.Questions) {
		return Question{}, false
	}
	return e.quiz.Questions[e.cursor], true
}

// Attempt returns a snapshot of the session's attempt record.
func (e *Engine) Attempt() Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempt
}
