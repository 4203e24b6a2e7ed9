package main

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/user"
)

// addUser creates a user.User, or gives an existing one the role and the new password.
func (cli *commandLine) addUser(name, email, pwd, role string) error {
	data := user.NewUser{FullName: name, Email: email, Password: pwd, PasswordConfirm: pwd, Roles: []string{role}}
	if err := data.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: data.Email})
	switch {
	case err == nil:
		usr.AddRole(role)
		usr.IsActive = true
		usr.UpdatedAt = now
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return err
	case errors.Cause(err) == user.ErrNotFound:
		usr = user.User{
			ID:        uuid.NewString(),
			Email:     data.Email,
			FullName:  data.FullName,
			IsActive:  true,
			Roles:     data.Roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if role == user.RoleTeacher {
			usr.TeacherApplicant, usr.TeacherApproved = true, true
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	default:
		return err
	}
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}

// describe flattens validation errors into one readable line.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
		}
	default:
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
