package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
)

var errNotStudent = errors.New("user is not a student")

// grant issues an active pass code binding the student to the courses.
func (cli *commandLine) grant(email string, courseIDs []string) (passcode.PassCode, error) {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return passcode.PassCode{}, err
	}
	if !usr.IsStudent() {
		return passcode.PassCode{}, errNotStudent
	}
	if err = cli.checkCourses(ctx, courseIDs); err != nil {
		return passcode.PassCode{}, err
	}
	return cli.passcodes.Grant(ctx, "", usr.ID, courseIDs)
}

// generatePassCodes issues count unassigned pass codes for the courses.
func (cli *commandLine) generatePassCodes(count int, courseIDs []string) ([]passcode.PassCode, error) {
	ctx := context.Background()
	data := passcode.GeneratePassCodes{Count: count, CourseIDs: courseIDs}
	if err := data.Validate(cli.validate); err != nil {
		return nil, cli.describe(err)
	}
	if err := cli.checkCourses(ctx, data.CourseIDs); err != nil {
		return nil, err
	}
	return cli.passcodes.Generate(ctx, core.System, data)
}

func (cli *commandLine) checkCourses(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if !core.IsUUID(id) {
			return errors.Wrap(course.ErrNotFound, id)
		}
		if _, err := cli.courseRepo.GetCourse(ctx, id); err != nil {
			return errors.Wrap(err, id)
		}
	}
	return nil
}
