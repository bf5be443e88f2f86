package quiz

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kotoba-school/kotoba/core"
)

// Level is a JLPT proficiency level.
type Level string

const (
	LevelN5 Level = "N5"
	LevelN4 Level = "N4"
	LevelN3 Level = "N3"
	LevelN2 Level = "N2"
	LevelN1 Level = "N1"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeFillBlank      QuestionType = "fill-blank"
	TypeEssay          QuestionType = "essay"
	TypeListening      QuestionType = "listening"
	TypeMatching       QuestionType = "matching"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Answer is a submitted or configured answer: a single string, or an
// ordered list for multi-valued question types. It marshals to a bare JSON
// string in the single case and an array otherwise.
type Answer struct {
	Values []string
	List   bool
}

func SingleAnswer(s string) Answer {
	return Answer{Values: []string{s}}
}

func ListAnswer(vals ...string) Answer {
	return Answer{Values: vals, List: true}
}

func (a Answer) Single() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

func (a Answer) IsZero() bool {
	return len(a.Values) == 0
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.List {
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Single())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = SingleAnswer(s)
		return nil
	}
	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	*a = ListAnswer(vals...)
	return nil
}

type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Options     []string     `json:"options,omitempty"`
	Correct     Answer       `json:"correct_answer"`
	Explanation string       `json:"explanation,omitempty"`
	MediaURL    string       `json:"media_url,omitempty"`
	Points      int          `json:"points"`
	Difficulty  Difficulty   `json:"difficulty"`
}

type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Level        Level      `json:"level"`
	Duration     int        `json:"duration"` // minutes
	Questions    []Question `json:"questions"`
	TotalPoints  int        `json:"total_points"`
	PassingScore int        `json:"passing_score"` // percentage 0-100
	MaxAttempts  int        `json:"max_attempts"`  // 0 = unlimited
	Published    bool       `json:"published"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

// RecomputeTotalPoints sums the question points. Called on every edit; the
// stored total is never trusted over the questions themselves.
func (qz *Quiz) RecomputeTotalPoints() {
	total := 0
	for _, q := range qz.Questions {
		total += q.Points
	}
	qz.TotalPoints = total
}

// Attempt is one full quiz run by one user. It is finalized exactly once on
// submission and never mutated afterwards; an unfinished attempt lives only
// in the engine's memory.
type Attempt struct {
	ID          string            `json:"id"`
	QuizID      string            `json:"quiz_id"`
	UserID      string            `json:"user_id"`
	Answers     map[string]Answer `json:"answers"`
	Score       float64           `json:"score"`
	TotalPoints int               `json:"total_points"`
	Percentage  int               `json:"percentage"`
	Passed      bool              `json:"passed"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	TimeSpent   int               `json:"time_spent"` // seconds
	Correct     int               `json:"correct_count"`
	Incorrect   int               `json:"incorrect_count"`
	Skipped     int               `json:"skipped_count"`
}

func (a Attempt) Completed() bool {
	return !a.CompletedAt.IsZero()
}

// NewQuestion is the payload for a question within quiz create/update.
type NewQuestion struct {
	Type        QuestionType `json:"type" validate:"required,oneof=multiple-choice fill-blank essay listening matching"`
	Prompt      string       `json:"prompt" validate:"required"`
	Options     []string     `json:"options"`
	Correct     Answer       `json:"correct_answer"`
	Explanation string       `json:"explanation"`
	MediaURL    string       `json:"media_url" validate:"omitempty,url"`
	Points      int          `json:"points" validate:"required,min=1"`
	Difficulty  Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
}

// NewQuiz contains information needed to create a new Quiz.
type NewQuiz struct {
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description"`
	Level        Level         `json:"level" validate:"required,oneof=N5 N4 N3 N2 N1"`
	Duration     int           `json:"duration" validate:"required,min=1"`
	Questions    []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	PassingScore int           `json:"passing_score" validate:"min=0,max=100"`
	MaxAttempts  int           `json:"max_attempts" validate:"min=0"`
	Published    bool          `json:"published"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	return validate.Struct(nq)
}

// UpdateQuiz defines what may be modified on an existing Quiz. A nil
// Questions slice leaves the question list untouched.
type UpdateQuiz struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Level        Level         `json:"level" validate:"omitempty,oneof=N5 N4 N3 N2 N1"`
	Duration     int           `json:"duration" validate:"omitempty,min=1"`
	Questions    []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
	PassingScore *int          `json:"passing_score" validate:"omitempty"`
	MaxAttempts  *int          `json:"max_attempts" validate:"omitempty"`
	Published    *bool         `json:"published"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	uq.Title = core.CleanString(uq.Title)
	return validate.Struct(uq)
}

// NewAttempt is a complete set of answers submitted in one shot, outside an
// engine session. Grading happens server-side either way.
type NewAttempt struct {
	QuizID    string            `json:"quiz_id" validate:"required"`
	Answers   map[string]Answer `json:"answers" validate:"required"`
	TimeSpent int               `json:"time_spent" validate:"min=0"` // seconds
}

func (na *NewAttempt) Validate(validate *validator.Validate) error {
	return validate.Struct(na)
}

type QueryFilter struct {
	Search    string `query:"search"`
	Level     Level  `query:"level"`
	Published *bool  `query:"published"`
	CreatedBy string `query:"created_by"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Level == "" && qf.Published == nil && qf.CreatedBy == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// AttemptFilter narrows attempt queries; zero fields are ignored.
type AttemptFilter struct {
	QuizID string `query:"quiz_id"`
	UserID string `query:"user_id"`
}
