package inmemdb

import (
	"sort"
	"strings"

	"github.com/kotoba-school/kotoba/core/quiz"
)

type quizRepository struct {
	quizzes  *quizTable
	attempts *attemptTable
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{quizzes: db.quiz, attempts: db.attempt}
}

func (repo *quizRepository) query() []quiz.Quiz {
	quizzes := make([]quiz.Quiz, 0, len(repo.quizzes.table))
	for _, qz := range repo.quizzes.table {
		quizzes = append(quizzes, *qz)
	}
	return quizzes
}

func (repo *quizRepository) CreateQuiz(qz quiz.Quiz) (quiz.Quiz, error) {
	repo.quizzes.mutex.Lock()
	defer repo.quizzes.mutex.Unlock()

	repo.quizzes.table[qz.ID] = &qz
	return qz, nil
}

func (repo *quizRepository) GetQuizByID(id string) (quiz.Quiz, error) {
	repo.quizzes.mutex.RLock()
	defer repo.quizzes.mutex.RUnlock()

	if qz, ok := repo.quizzes.table[id]; ok {
		return *qz, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryAllQuizzes() ([]quiz.Quiz, error) {
	repo.quizzes.mutex.RLock()
	defer repo.quizzes.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *quizRepository) FilterQuizzes(filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	repo.quizzes.mutex.RLock()
	defer repo.quizzes.mutex.RUnlock()

	var quizzes []quiz.Quiz
	for _, qz := range repo.query() {
		if matchesQuiz(qz, filter) {
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func matchesQuiz(qz quiz.Quiz, filter quiz.QueryFilter) bool {
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(qz.Title), kw) || strings.Contains(strings.ToLower(qz.Description), kw)) {
			return false
		}
	}
	if filter.Level != "" && qz.Level != filter.Level {
		return false
	}
	if filter.Published != nil && qz.Published != *filter.Published {
		return false
	}
	if filter.CreatedBy != "" && qz.CreatedBy != filter.CreatedBy {
		return false
	}
	return true
}

func (repo *quizRepository) UpdateQuiz(qz quiz.Quiz) (quiz.Quiz, error) {
	repo.quizzes.mutex.Lock()
	defer repo.quizzes.mutex.Unlock()

	if _, ok := repo.quizzes.table[qz.ID]; !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	repo.quizzes.table[qz.ID] = &qz
	return qz, nil
}

func (repo *quizRepository) DeleteQuizzesByID(ids ...string) error {
	repo.quizzes.mutex.Lock()
	defer repo.quizzes.mutex.Unlock()
	for _, id := range ids {
		delete(repo.quizzes.table, id)
	}
	return nil
}

func (repo *quizRepository) CreateAttempt(att quiz.Attempt) (quiz.Attempt, error) {
	repo.attempts.mutex.Lock()
	defer repo.attempts.mutex.Unlock()

	repo.attempts.table[att.ID] = &att
	return att, nil
}

func (repo *quizRepository) FilterAttempts(filter quiz.AttemptFilter) ([]quiz.Attempt, error) {
	repo.attempts.mutex.RLock()
	defer repo.attempts.mutex.RUnlock()

	var attempts []quiz.Attempt
	for _, att := range repo.attempts.table {
		if matchesAttempt(*att, filter) {
			attempts = append(attempts, *att)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].StartedAt.Before(attempts[j].StartedAt) })
	return attempts, nil
}

func (repo *quizRepository) CountAttempts(filter quiz.AttemptFilter) (int, error) {
	repo.attempts.mutex.RLock()
	defer repo.attempts.mutex.RUnlock()

	var count int
	for _, att := range repo.attempts.table {
		if matchesAttempt(*att, filter) {
			count++
		}
	}
	return count, nil
}

func matchesAttempt(att quiz.Attempt, filter quiz.AttemptFilter) bool {
	if filter.QuizID != "" && att.QuizID != filter.QuizID {
		return false
	}
	if filter.UserID != "" && att.UserID != filter.UserID {
		return false
	}
	return true
}
