package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-school/kotoba/core/access"
	"github.com/kotoba-school/kotoba/core/quiz"
	"github.com/kotoba-school/kotoba/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role access.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuiz(
	t *testing.T,
	repo quiz.Repository,
	title string,
	level quiz.Level,
	createdBy string,
	published bool,
	createdAt time.Time,
	questions ...quiz.Question,
) quiz.Quiz {
	tstamp := createdAt.UTC()
	qz := quiz.Quiz{
		ID:           uuid.New().String(),
		Title:        title,
		Level:        level,
		Duration:     10,
		Questions:    questions,
		PassingScore: 70,
		Published:    published,
		CreatedBy:    createdBy,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	qz.RecomputeTotalPoints()
	qz, err := repo.CreateQuiz(qz)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return qz
}
