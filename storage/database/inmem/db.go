package inmemdb

import (
	"sync"

	"github.com/kotoba-school/kotoba/core/quiz"
	"github.com/kotoba-school/kotoba/core/user"
)

// DB is an in-memory store used by tests and local development. Each table
// carries its own RWMutex; repositories never lock across tables.
type DB struct {
	user    *userTable
	token   *tokenTable
	quiz    *quizTable
	attempt *attemptTable
}

func NewDB() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		token:   &tokenTable{table: make(map[string]*user.ResetToken)},
		quiz:    &quizTable{table: make(map[string]*quiz.Quiz)},
		attempt: &attemptTable{table: make(map[string]*quiz.Attempt)},
	}
}

type userTable struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

type tokenTable struct {
	mutex sync.RWMutex
	table map[string]*user.ResetToken
}

type quizTable struct {
	mutex sync.RWMutex
	table map[string]*quiz.Quiz
}

type attemptTable struct {
	mutex sync.RWMutex
	table map[string]*quiz.Attempt
}
