package user

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-school/kotoba/core"
	"github.com/kotoba-school/kotoba/core/access"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrInvalidRole = errors.New("invalid role")
)

type (
	Repository interface {
		CheckEmailUniqueness(email string, excludedUsers ...User) error
		CreateUser(usr User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id string) (User, error)
		GetUserByEmail(email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Name or User.Email.
		FilterUsers(filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		UpdateUser(usr User, isActive *bool) (User, error)
		SetLastLogin(id string, t time.Time) (User, error)
		DeleteUsersByID(ids ...string) error
	}

	Service interface {
		CheckEmailUniqueness(email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		Register(nu NewUser) (User, error)
		QueryAll() ([]User, error)
		GetByID(id string) (User, error)
		GetByEmail(email string) (User, error)
		Filter(filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		Update(id string, uu UpdateUser) (User, error)
		UpdateRole(id string, role access.Role) (User, error)
		SetLastLogin(usr User) (User, error)
		RequestPasswordReset(email string) error
		ValidateResetToken(token string) error
		ResetPassword(rp ResetUserPassword) error
		Delete(ids ...string) error
	}

	service struct {
		repo    Repository
		tokens  TokenRepository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tokens TokenRepository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		tokens:  tokens,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = access.RoleStudent
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(usr)
}

// Register is the self-signup path: the initial role is always student,
// whatever the payload claims, and a welcome mail goes out.
func (svc *service) Register(nu NewUser) (User, error) {
	nu.Role = access.RoleStudent
	usr, err := svc.Create(nu)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) Filter(filter QueryFilter, orderings ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(filter, orderings...)
}

func (svc *service) Update(id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

// UpdateRole is the privileged role mutation. Only student, teacher and
// admin are assignable: nobody is demoted back to guest through this path.
// Admin-ship of the caller is the API layer's check; the service only
// guards the target value.
func (svc *service) UpdateRole(id string, role access.Role) (User, error) {
	switch role {
	case access.RoleStudent, access.RoleTeacher, access.RoleAdmin:
	default:
		return User{}, ErrInvalidRole
	}

	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	return svc.repo.UpdateUser(User{
		ID:        usr.ID,
		Name:      usr.Name,
		Email:     usr.Email,
		Role:      role,
		UpdatedAt: time.Now().UTC(),
	}, nil)
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	return svc.repo.SetLastLogin(usr.ID, time.Now().UTC())
}

// RequestPasswordReset issues a fresh single-use token for the account and
// mails it. ErrNotFound surfaces so the API can hide it from enumeration.
func (svc *service) RequestPasswordReset(email string) error {
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
	svc.sendPasswordResetMail(usr, tok)
	return nil
}

// ValidateResetToken checks a token without consuming it.
func (svc *service) ValidateResetToken(token string) error {
	tok, err := svc.tokens.GetToken(token)
	if err != nil {
		return err
	}
	return checkToken(tok)
}

// ResetPassword consumes the token and sets the new password. Consumption
// is atomic in the repository: a concurrent second call loses.
func (svc *service) ResetPassword(rp ResetUserPassword) error {
	tok, err := svc.tokens.ConsumeToken(rp.Token)
	if err != nil {
		return err
	}

	usr, err := svc.repo.GetUserByEmail(tok.Email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(usr, nil)
	return err
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{usr.Name},
	})
}

func (svc *service) sendPasswordResetMail(usr User, tok ResetToken) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			Token string
			URL   string
		}{
			Name:  usr.Name,
			Token: tok.Token,
			URL:   fmt.Sprintf("%s/reset-password?token=%s", svc.conf.FrontendBaseURL, tok.Token),
		},
	})
}
