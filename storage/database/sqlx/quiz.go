package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kotoba-school/kotoba/core/quiz"
)

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *sql.DB) quiz.Repository {
	return &quizRepository{db: sqlx.NewDb(db, "postgres")}
}

type quizRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Description  null.String `db:"description"`
	Level        string      `db:"level"`
	Duration     int         `db:"duration"`
	Questions    []byte      `db:"questions"` // jsonb
	TotalPoints  int         `db:"total_points"`
	PassingScore int         `db:"passing_score"`
	MaxAttempts  int         `db:"max_attempts"`
	Published    bool        `db:"published"`
	CreatedBy    null.String `db:"created_by"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

func newQuizRow(qz quiz.Quiz) (quizRow, error) {
	questions, err := json.Marshal(qz.Questions)
	if err != nil {
		return quizRow{}, errors.Wrap(err, "marshalling questions")
	}
	return quizRow{
		ID:           qz.ID,
		Title:        qz.Title,
		Description:  null.NewString(qz.Description, qz.Description != ""),
		Level:        string(qz.Level),
		Duration:     qz.Duration,
		Questions:    questions,
		TotalPoints:  qz.TotalPoints,
		PassingScore: qz.PassingScore,
		MaxAttempts:  qz.MaxAttempts,
		Published:    qz.Published,
		CreatedBy:    null.NewString(qz.CreatedBy, qz.CreatedBy != ""),
		CreatedAt:    null.NewTime(qz.CreatedAt.UTC(), !qz.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(qz.UpdatedAt.UTC(), !qz.UpdatedAt.IsZero()),
	}, nil
}

func (r quizRow) quiz() (quiz.Quiz, error) {
	var questions []quiz.Question
	if len(r.Questions) > 0 {
		if err := json.Unmarshal(r.Questions, &questions); err != nil {
			return quiz.Quiz{}, errors.Wrap(err, "unmarshalling questions")
		}
	}
	return quiz.Quiz{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description.String,
		Level:        quiz.Level(r.Level),
		Duration:     r.Duration,
		Questions:    questions,
		TotalPoints:  r.TotalPoints,
		PassingScore: r.PassingScore,
		MaxAttempts:  r.MaxAttempts,
		Published:    r.Published,
		CreatedBy:    r.CreatedBy.String,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}, nil
}

func quizSlice(rows []quizRow) ([]quiz.Quiz, error) {
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		qz, err := r.quiz()
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, qz)
	}
	return quizzes, nil
}

func (repo *quizRepository) CreateQuiz(qz quiz.Quiz) (quiz.Quiz, error) {
	row, err := newQuizRow(qz)
	if err != nil {
		return quiz.Quiz{}, err
	}
	query := `
		INSERT INTO quiz (id, title, description, level, duration, questions, total_points,
			passing_score, max_attempts, published, created_by, created_at, updated_at)
		VALUES (:id, :title, :description, :level, :duration, :questions, :total_points,
			:passing_score, :max_attempts, :published, :created_by, :created_at, :updated_at)`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return qz, nil
}

func (repo *quizRepository) GetQuizByID(id string) (quiz.Quiz, error) {
	var row quizRow
	if err := repo.db.Get(&row, `SELECT * FROM quiz WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return quiz.Quiz{}, quiz.ErrNotFound
		}
		return quiz.Quiz{}, errors.Wrap(err, "finding quiz by ID")
	}
	return row.quiz()
}

func (repo *quizRepository) QueryAllQuizzes() ([]quiz.Quiz, error) {
	var rows []quizRow
	if err := repo.db.Select(&rows, `SELECT * FROM quiz`); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	return quizSlice(rows)
}

func (repo *quizRepository) FilterQuizzes(filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	where := []string{"TRUE"}
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.Level != "" {
		args = append(args, string(filter.Level))
		where = append(where, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		where = append(where, fmt.Sprintf("published = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT * FROM quiz WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at`

	var rows []quizRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering quizzes")
	}
	return quizSlice(rows)
}

func (repo *quizRepository) UpdateQuiz(qz quiz.Quiz) (quiz.Quiz, error) {
	row, err := newQuizRow(qz)
	if err != nil {
		return quiz.Quiz{}, err
	}
	query := `
		UPDATE quiz SET title = :title, description = :description, level = :level,
			duration = :duration, questions = :questions, total_points = :total_points,
			passing_score = :passing_score, max_attempts = :max_attempts,
			published = :published, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExec(query, row)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return qz, nil
}

func (repo *quizRepository) DeleteQuizzesByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM quiz WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting quizzes")
	}
	return nil
}

type attemptRow struct {
	ID          string    `db:"id"`
	QuizID      string    `db:"quiz_id"`
	UserID      string    `db:"user_id"`
	Answers     []byte    `db:"answers"` // jsonb
	Score       float64   `db:"score"`
	TotalPoints int       `db:"total_points"`
	Percentage  int       `db:"percentage"`
	Passed      bool      `db:"passed"`
	StartedAt   null.Time `db:"started_at"`
	CompletedAt null.Time `db:"completed_at"`
	TimeSpent   int       `db:"time_spent"`
	Correct     int       `db:"correct_count"`
	Incorrect   int       `db:"incorrect_count"`
	Skipped     int       `db:"skipped_count"`
}

func newAttemptRow(att quiz.Attempt) (attemptRow, error) {
	answers, err := json.Marshal(att.Answers)
	if err != nil {
		return attemptRow{}, errors.Wrap(err, "marshalling answers")
	}
	return attemptRow{
		ID:          att.ID,
		QuizID:      att.QuizID,
		UserID:      att.UserID,
		Answers:     answers,
		Score:       att.Score,
		TotalPoints: att.TotalPoints,
		Percentage:  att.Percentage,
		Passed:      att.Passed,
		StartedAt:   null.NewTime(att.StartedAt.UTC(), !att.StartedAt.IsZero()),
		CompletedAt: null.NewTime(att.CompletedAt.UTC(), !att.CompletedAt.IsZero()),
		TimeSpent:   att.TimeSpent,
		Correct:     att.Correct,
		Incorrect:   att.Incorrect,
		Skipped:     att.Skipped,
	}, nil
}

func (r attemptRow) attempt() (quiz.Attempt, error) {
	var answers map[string]quiz.Answer
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &answers); err != nil {
			return quiz.Attempt{}, errors.Wrap(err, "unmarshalling answers")
		}
	}
	return quiz.Attempt{
		ID:          r.ID,
		QuizID:      r.QuizID,
		UserID:      r.UserID,
		Answers:     answers,
		Score:       r.Score,
		TotalPoints: r.TotalPoints,
		Percentage:  r.Percentage,
		Passed:      r.Passed,
		StartedAt:   r.StartedAt.Time,
		CompletedAt: r.CompletedAt.Time,
		TimeSpent:   r.TimeSpent,
		Correct:     r.Correct,
		Incorrect:   r.Incorrect,
		Skipped:     r.Skipped,
	}, nil
}

func (repo *quizRepository) CreateAttempt(att quiz.Attempt) (quiz.Attempt, error) {
	row, err := newAttemptRow(att)
	if err != nil {
		return quiz.Attempt{}, err
	}
	query := `
		INSERT INTO quiz_attempt (id, quiz_id, user_id, answers, score, total_points, percentage,
			passed, started_at, completed_at, time_spent, correct_count, incorrect_count, skipped_count)
		VALUES (:id, :quiz_id, :user_id, :answers, :score, :total_points, :percentage,
			:passed, :started_at, :completed_at, :time_spent, :correct_count, :incorrect_count, :skipped_count)`
	if _, err = repo.db.NamedExec(query, row); err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return att, nil
}

func (repo *quizRepository) FilterAttempts(filter quiz.AttemptFilter) ([]quiz.Attempt, error) {
	where := []string{"TRUE"}
	var args []interface{}

	if filter.QuizID != "" {
		args = append(args, filter.QuizID)
		where = append(where, fmt.Sprintf("quiz_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT * FROM quiz_attempt WHERE ` + strings.Join(where, " AND ") + ` ORDER BY started_at`

	var rows []attemptRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering attempts")
	}

	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, r := range rows {
		att, err := r.attempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, att)
	}
	return attempts, nil
}

func (repo *quizRepository) CountAttempts(filter quiz.AttemptFilter) (int, error) {
	where := []string{"TRUE"}
	var args []interface{}

	if filter.QuizID != "" {
		args = append(args, filter.QuizID)
		where = append(where, fmt.Sprintf("quiz_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	var count int
	query := `SELECT COUNT(*) FROM quiz_attempt WHERE ` + strings.Join(where, " AND ")
	if err := repo.db.Get(&count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting attempts")
	}
	return count, nil
}
