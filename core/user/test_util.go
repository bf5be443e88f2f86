package user

import (
	"github.com/kotoba-school/kotoba/core"
)

type serviceMock struct {
	service
}

// NewServiceMock behaves like the real service but runs the password-reset
// mail synchronously so tests can inspect sent messages.
func NewServiceMock(repo Repository, tokens TokenRepository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			tokens:  tokens,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	tok, err := makeToken(usr.Email, svc.conf.PasswordResetTimeout)
	if err != nil {
		return err
	}
	if err = svc.tokens.CreateToken(tok); err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr, tok)
	return nil
}
