package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-school/kotoba/core/access"
)

var (
	// errors
	ErrNotFound    = errors.New("quiz not found")
	ErrNotOwner    = errors.New("quiz belongs to another user")
	ErrQuizLocked  = errors.New("quiz has recorded attempts and can no longer be edited")
	ErrMaxAttempts = errors.New("maximum number of attempts reached")
)

type (
	Repository interface {
		CreateQuiz(qz Quiz) (Quiz, error)
		GetQuizByID(id string) (Quiz, error)
		QueryAllQuizzes() ([]Quiz, error)
		// FilterQuizzes applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Quiz.Title or Quiz.Description.
		FilterQuizzes(filter QueryFilter) ([]Quiz, error)
		UpdateQuiz(qz Quiz) (Quiz, error)
		DeleteQuizzesByID(ids ...string) error

		CreateAttempt(att Attempt) (Attempt, error)
		FilterAttempts(filter AttemptFilter) ([]Attempt, error)
		CountAttempts(filter AttemptFilter) (int, error)
	}

	Service interface {
		Create(creator string, nq NewQuiz) (Quiz, error)
		GetByID(id string) (Quiz, error)
		QueryAll() ([]Quiz, error)
		Filter(filter QueryFilter) ([]Quiz, error)
		Update(id string, uq UpdateQuiz, editor string, editorRole access.Role) (Quiz, error)
		Delete(editor string, editorRole access.Role, ids ...string) error
		Attempts(filter AttemptFilter) ([]Attempt, error)
		AttemptCount(quizID, userID string) (int, error)
		RecordAttempt(userID string, na NewAttempt) (Attempt, error)

		// AttemptStore lets engine sessions persist through the service.
		AttemptStore
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(creator string, nq NewQuiz) (Quiz, error) {
	now := time.Now().UTC()
	qz := Quiz{
		ID:           uuid.New().String(),
		Title:        nq.Title,
		Description:  nq.Description,
		Level:        nq.Level,
		Duration:     nq.Duration,
		Questions:    buildQuestions(nq.Questions),
		PassingScore: nq.PassingScore,
		MaxAttempts:  nq.MaxAttempts,
		Published:    nq.Published,
		CreatedBy:    creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	qz.RecomputeTotalPoints()
	return svc.repo.CreateQuiz(qz)
}

func (svc *service) GetByID(id string) (Quiz, error) {
	return svc.repo.GetQuizByID(id)
}

func (svc *service) QueryAll() ([]Quiz, error) {
	return svc.repo.QueryAllQuizzes()
}

func (svc *service) Filter(filter QueryFilter) ([]Quiz, error) {
	return svc.repo.FilterQuizzes(filter)
}

// Update edits a quiz. Only the creator or an admin may edit, and a quiz
// referenced by any attempt is frozen.
func (svc *service) Update(id string, uq UpdateQuiz, editor string, editorRole access.Role) (Quiz, error) {
	qz, err := svc.repo.GetQuizByID(id)
	if err != nil {
		return Quiz{}, err
	}
	if err = svc.checkOwnership(qz, editor, editorRole); err != nil {
		return Quiz{}, err
	}

	attempted, err := svc.repo.CountAttempts(AttemptFilter{QuizID: id})
	if err != nil {
		return Quiz{}, err
	}
	if attempted > 0 {
		return Quiz{}, ErrQuizLocked
	}

	if uq.Title != "" {
		qz.Title = uq.Title
	}
	if uq.Description != "" {
		qz.Description = uq.Description
	}
	if uq.Level != "" {
		qz.Level = uq.Level
	}
	if uq.Duration > 0 {
		qz.Duration = uq.Duration
	}
	if uq.Questions != nil {
		qz.Questions = buildQuestions(uq.Questions)
	}
	if uq.PassingScore != nil {
		qz.PassingScore = *uq.PassingScore
	}
	if uq.MaxAttempts != nil {
		qz.MaxAttempts = *uq.MaxAttempts
	}
	if uq.Published != nil {
		qz.Published = *uq.Published
	}
	qz.RecomputeTotalPoints()
	qz.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateQuiz(qz)
}

func (svc *service) Delete(editor string, editorRole access.Role, ids ...string) error {
	for _, id := range ids {
		qz, err := svc.repo.GetQuizByID(id)
		if err != nil {
			return err
		}
		if err = svc.checkOwnership(qz, editor, editorRole); err != nil {
			return err
		}
	}
	return svc.repo.DeleteQuizzesByID(ids...)
}

func (svc *service) Attempts(filter AttemptFilter) ([]Attempt, error) {
	return svc.repo.FilterAttempts(filter)
}

func (svc *service) AttemptCount(quizID, userID string) (int, error) {
	return svc.repo.CountAttempts(AttemptFilter{QuizID: quizID, UserID: userID})
}

func (svc *service) SaveAttempt(att Attempt) (Attempt, error) {
	return svc.repo.CreateAttempt(att)
}

func (svc *service) CountAttempts(filter AttemptFilter) (int, error) {
	return svc.repo.CountAttempts(filter)
}

// RecordAttempt grades a one-shot submission and persists it. The attempt
// limit applies the same way it does for engine sessions.
func (svc *service) RecordAttempt(userID string, na NewAttempt) (Attempt, error) {
	qz, err := svc.repo.GetQuizByID(na.QuizID)
	if err != nil {
		return Attempt{}, err
	}

	if qz.MaxAttempts > 0 {
		count, err := svc.repo.CountAttempts(AttemptFilter{QuizID: qz.ID, UserID: userID})
		if err != nil {
			return Attempt{}, err
		}
		if count >= qz.MaxAttempts {
			return Attempt{}, ErrMaxAttempts
		}
	}

	now := time.Now().UTC()
	timeSpent := na.TimeSpent
	if max := qz.Duration * 60; timeSpent > max {
		timeSpent = max
	}
	sum := scoreAttempt(qz, na.Answers)
	att := Attempt{
		ID:          uuid.New().String(),
		QuizID:      qz.ID,
		UserID:      userID,
		Answers:     na.Answers,
		Score:       sum.score,
		TotalPoints: qz.TotalPoints,
		Percentage:  percentage(sum.score, qz.TotalPoints),
		StartedAt:   now.Add(-time.Duration(timeSpent) * time.Second),
		CompletedAt: now,
		TimeSpent:   timeSpent,
		Correct:     sum.correct,
		Incorrect:   sum.incorrect,
		Skipped:     sum.skipped,
	}
	att.Passed = att.Percentage >= qz.PassingScore
	return svc.repo.CreateAttempt(att)
}

func (svc *service) checkOwnership(qz Quiz, editor string, editorRole access.Role) error {
	if qz.CreatedBy != editor && editorRole != access.RoleAdmin {
		return ErrNotOwner
	}
	return nil
}

func buildQuestions(nqs []NewQuestion) []Question {
	questions := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		questions = append(questions, Question{
			ID:          uuid.New().String(),
			Type:        nq.Type,
			Prompt:      nq.Prompt,
			Options:     nq.Options,
			Correct:     nq.Correct,
			Explanation: nq.Explanation,
			MediaURL:    nq.MediaURL,
			Points:      nq.Points,
			Difficulty:  nq.Difficulty,
		})
	}
	return questions
}
