package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/kotoba-school/kotoba/core"
	"github.com/kotoba-school/kotoba/core/access"
	"github.com/kotoba-school/kotoba/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Name:      name,
			Email:     email,
			Role:      access.RoleStudent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		usr.SetActive(true)
		if isAdmin {
			usr.Role = access.RoleAdmin
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(usr)
		return err
	}

	usr.Name = name
	if isAdmin {
		usr.Role = access.RoleAdmin
	}
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	active := true
	_, err = cli.usrRepo.UpdateUser(usr, &active)
	return err
}
