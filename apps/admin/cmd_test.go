package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t, nil)

	// start CLI
	return &commandLine{
		usrRepo:    env.UserRepo,
		courseRepo: env.CourseRepo,
		passcodes:  env.PassCodeSvc,
		validate:   env.Validate,
		translator: env.Translator,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil; want %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var got []string
	orig := runMigrationsFunc
	runMigrationsFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		got = append([]string{command}, args...)
		return nil
	}
	t.Cleanup(func() { runMigrationsFunc = orig })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				if diff := cmp.Diff(tt.args[1:], got); diff != "" {
					t.Errorf("failed! goose args mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	existing := testutil.CreateUser(t, env.UserRepo, "Guru", "guru@test.id", "GuruP@ss1", []string{user.RoleStudent}, false)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Root", "-email", "root@test.id"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-name", "Root", "-email", "root@test.id"}, pwd: "root", wantErrStr: "password: password must contain at least 8 characters"},
		{name: "unknown role", args: []string{"adduser", "-name", "Root", "-email", "root@test.id", "-role", "god"}, pwd: "R00t#Pass", wantErrStr: "roles: invalid roles"},
		{name: "create admin", args: []string{"adduser", "-name", "Root", "-email", "Root@Test.id"}, pwd: "R00t#Pass"},
		{name: "promote existing", args: []string{"adduser", "-name", "Guru", "-email", existing.Email, "-role", "teacher"}, pwd: "N3w#Teach"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ctx := context.Background()
	root, err := env.UserRepo.GetUser(ctx, user.GetFilter{Email: "root@test.id"})
	if err != nil {
		t.Fatalf("GetUser(root): %v", err)
	}
	if !root.IsAdmin() || !root.IsActive || root.CheckPassword("R00t#Pass") != nil {
		t.Errorf("root = %+v", root)
	}

	guru, err := env.UserRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	if err != nil {
		t.Fatalf("GetUser(guru): %v", err)
	}
	if !guru.IsTeacher() || !guru.IsStudent() || !guru.IsActive || guru.CheckPassword("N3w#Teach") != nil {
		t.Errorf("guru = %+v", guru)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "User", "awe@test.cd", "Aw3s0me!", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	if err != nil {
		t.Fatalf("GetUser(): %v", err)
	}
	if bytes.Equal(refreshed.PasswordHash, usr.PasswordHash) || refreshed.CheckPassword("lmao") != nil {
		t.Error("failed to update new password")
	}
}

func Test_commandLine_grant(t *testing.T) {
	cli, env := setup(t)
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.id", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go", 0, true)

	tests := []cliTest{
		{name: "no args", args: []string{"grant"}, wantErr: errHelp},
		{name: "no courses", args: []string{"grant", "-email", student.Email, "-courses", " , "}, wantErr: errHelp},
		{name: "unknown student", args: []string{"grant", "-email", "lol@test.id", "-courses", crs.ID}, wantErr: user.ErrNotFound},
		{name: "not a student", args: []string{"grant", "-email", teacher.Email, "-courses", crs.ID}, wantErr: errNotStudent},
		{name: "unknown course", args: []string{"grant", "-email", student.Email, "-courses", crs.ID + ",lol"}, wantErr: course.ErrNotFound},
		{name: "grant", args: []string{"grant", "-email", student.Email, "-courses", crs.ID + "," + crs.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ids, err := env.PassCodeSvc.AccessibleCourseIDs(context.Background(), student.ID)
	if err != nil {
		t.Fatalf("AccessibleCourseIDs(): %v", err)
	}
	if diff := cmp.Diff([]string{crs.ID}, ids); diff != "" {
		t.Errorf("failed! courses mismatch (-want +got):\n%s", diff)
	}
}

func Test_commandLine_passCode(t *testing.T) {
	cli, env := setup(t)
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go", 0, true)

	tests := []cliTest{
		{name: "no courses", args: []string{"passcode", "-count", "2"}, wantErr: errHelp},
		{name: "zero count", args: []string{"passcode", "-count", "0", "-courses", crs.ID}, wantErrStr: "count: this field is required"},
		{name: "unknown course", args: []string{"passcode", "-courses", "00000000-0000-4000-8000-000000000000"}, wantErr: course.ErrNotFound},
		{name: "generate", args: []string{"passcode", "-count", "3", "-courses", crs.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	assigned := false
	codes, err := env.PassCodeSvc.Query(context.Background(), &passcode.QueryFilter{CourseID: crs.ID, Assigned: &assigned}, nil)
	if err != nil {
		t.Fatalf("Query(): %v", err)
	}
	if len(codes) != 3 {
		t.Errorf("failed! generated %d pass codes; want 3", len(codes))
	}
}
