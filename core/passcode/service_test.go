package passcode_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

func TestService_Redeem(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	ctx := context.Background()
	admin := core.Actor{ID: "admin", Admin: true}
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go", 0, true)
	alice := testutil.CreateUser(t, env.UserRepo, "Alice", "alice@test.id", "", []string{user.RoleStudent}, true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob", "bob@test.id", "", []string{user.RoleStudent}, true)

	codes, err := env.PassCodeSvc.Generate(ctx, admin, passcode.GeneratePassCodes{Count: 2, CourseIDs: []string{crs.ID}})
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	free, inactive := codes[0], codes[1]
	if _, err = env.PassCodeSvc.SetActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("SetActive(): %v", err)
	}

	tests := []struct {
		name      string
		studentID string
		code      string
		wantErr   error
	}{
		{name: "unknown code", studentID: alice.ID, code: "ZZZZZZZZ", wantErr: passcode.ErrNotFound},
		{name: "inactive code", studentID: alice.ID, code: inactive.Code, wantErr: passcode.ErrInactive},
		{name: "redeem lower case", studentID: alice.ID, code: " " + strings.ToLower(free.Code)},
		{name: "redeem again", studentID: alice.ID, code: free.Code},
		{name: "taken", studentID: bob.ID, code: free.Code, wantErr: passcode.ErrCodeTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := env.PassCodeSvc.Redeem(ctx, tt.studentID, tt.code)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("Redeem() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && pc.StudentID != tt.studentID {
				t.Errorf("Redeem() StudentID = %q; want %q", pc.StudentID, tt.studentID)
			}
		})
	}
}

func TestService_Redeem_concurrent(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go", 0, true)
	codes, err := env.PassCodeSvc.Generate(ctx, core.Actor{ID: "admin", Admin: true},
		passcode.GeneratePassCodes{Count: 1, CourseIDs: []string{crs.ID}})
	if err != nil {
		t.Fatalf("Generate(): %v", err)
	}
	code := codes[0].Code

	const students = 16
	ids := make([]string, students)
	for i := range ids {
		ids[i] = testutil.CreateUser(t, env.UserRepo, "Student", emailN(i), "", []string{user.RoleStudent}, true).ID
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner []string
		taken  int
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			<-start
			_, err := env.PassCodeSvc.Redeem(ctx, studentID, code)
			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				winner = append(winner, studentID)
			case passcode.ErrCodeTaken:
				taken++
			default:
				t.Errorf("Redeem() unexpected error = %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if len(winner) != 1 || taken != students-1 {
		t.Fatalf("failed! %d winners and %d taken; want 1 and %d", len(winner), taken, students-1)
	}
	pc, err := env.PassCodeSvc.Get(ctx, codes[0].ID)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	if pc.StudentID != winner[0] {
		t.Errorf("failed! pass code held by %q; want %q", pc.StudentID, winner[0])
	}
}

func emailN(i int) string {
	return "student" + string(rune('a'+i)) + "@test.id"
}
