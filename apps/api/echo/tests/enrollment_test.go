package tests

import (
	"net/http"
	"testing"

	echoapi "github.com/alphazero/academy/apps/api/echo"
	"github.com/alphazero/academy/core/enrollment"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

type submitResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
}

type createStudentResponse struct {
	Success  bool               `json:"success"`
	User     user.User          `json:"user"`
	Password string             `json:"password"`
	PassCode *passcode.PassCode `json:"pass_code"`
}

func Test_enrollmentFlow(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	public := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 0, true)
	draft := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Draft", 0, false)
	adminToken := app.token(t, fx.admin)

	enroll := func(email, otp string, courseIDs ...string) []byte {
		return marshalObj(t, enrollment.PublicEnrollment{
			FullName:  "Jane Doe",
			Email:     email,
			Phone:     "+62 812 0000",
			Message:   "hello",
			CourseIDs: courseIDs,
			OTP:       otp,
		})
	}
	submit := func(t *testing.T, email string) string {
		t.Helper()
		code := app.sendOTP(t, email)
		rec := app.do(http.MethodPost, "/v1/functions/public-enrollment", "", enroll(email, code, public.ID))
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp submitResponse
		decode(t, rec, &resp)
		if !resp.Success || resp.RequestID == "" {
			t.Fatalf("submit: got %+v", resp)
		}
		return resp.RequestID
	}

	t.Run("validation", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/public-enrollment", "", nil)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "this field is required"})}, rec)
	})

	t.Run("otp is required to match", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/public-enrollment", "", enroll("jane@test.id", "123456", public.ID))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid or expired code"})}, rec)
	})

	t.Run("unpublished courses are unknown", func(t *testing.T) {
		code := app.sendOTP(t, "jane@test.id")
		rec := app.do(http.MethodPost, "/v1/functions/public-enrollment", "", enroll("jane@test.id", code, draft.ID))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "unknown course " + draft.ID})}, rec)
	})

	var id string
	t.Run("submit notifies the applicant and the admins", func(t *testing.T) {
		id = submit(t, "Jane@Test.id")
		sent := app.Mail.SentMessages()
		if len(sent) != 3 {
			t.Fatalf("failed! len(SentMessages) = %d; want 3", len(sent))
		}
		if got := sent[1].To[0].Address; got != "jane@test.id" {
			t.Errorf("failed! applicant mail sent to %q", got)
		}
		if got := sent[2].To[0].Address; got != fx.admin.Email {
			t.Errorf("failed! admin mail sent to %q; want %q", got, fx.admin.Email)
		}
	})

	app.run(t, []httpTest{
		{name: "admins only", method: http.MethodGet, path: "/v1/enrollments", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden},
		{name: "unknown request", method: http.MethodPost, path: "/v1/enrollments/lol/approve", token: adminToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "enrollment request not found"})},
	})

	t.Run("approve provisions the student", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/enrollments?status=pending", adminToken, nil)
		var pending []enrollment.Request
		decode(t, rec, &pending)
		if len(pending) != 1 || pending[0].ID != id {
			t.Fatalf("failed! pending = %+v", pending)
		}

		app.Mail.Reset()
		rec = app.do(http.MethodPost, "/v1/enrollments/"+id+"/approve", adminToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.ApproveResponse
		decode(t, rec, &resp)
		prov := resp.Provisioned
		if resp.Request.Status != enrollment.StatusApproved || resp.Request.StudentID != prov.Student.ID {
			t.Errorf("failed! request = %+v", resp.Request)
		}
		if prov.Password == "" || prov.PassCode == nil || prov.PassCode.CourseIDs[0] != public.ID {
			t.Fatalf("failed! provisioned = %+v", prov)
		}
		if sent := app.Mail.SentMessages(); len(sent) != 1 || sent[0].To[0].Address != "jane@test.id" {
			t.Errorf("failed! welcome mail = %+v", sent)
		}

		// the generated password works and the course is open
		rec = app.do(http.MethodPost, "/v1/auth/login", "", marshalObj(t, echoapi.LoginRequest{Email: "jane@test.id", Password: prov.Password}))
		if rec.Code != http.StatusOK {
			t.Fatalf("login: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var login echoapi.LoginResponse
		decode(t, rec, &login)
		rec = app.do(http.MethodGet, "/v1/courses/"+public.ID+"/videos", login.Token, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("videos: code = %v; want %v", rec.Code, http.StatusOK)
		}

		rec = app.do(http.MethodPost, "/v1/enrollments/"+id+"/approve", adminToken, nil)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "enrollment request already processed"})}, rec)
	})

	t.Run("approve reuses an existing account", func(t *testing.T) {
		id := submit(t, fx.student.Email)
		rec := app.do(http.MethodPost, "/v1/enrollments/"+id+"/approve", adminToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.ApproveResponse
		decode(t, rec, &resp)
		if resp.Provisioned.Student.ID != fx.student.ID || resp.Provisioned.Password != "" {
			t.Errorf("failed! provisioned = %+v", resp.Provisioned)
		}
	})

	t.Run("reject", func(t *testing.T) {
		id := submit(t, "john@test.id")
		rec := app.do(http.MethodPost, "/v1/enrollments/"+id+"/reject", adminToken, marshalObj(t, enrollment.RejectRequest{Reason: " full "}))
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var req enrollment.Request
		decode(t, rec, &req)
		if req.Status != enrollment.StatusRejected || req.AdminNote != "full" || req.ProcessedAt == nil {
			t.Errorf("failed! request = %+v", req)
		}
	})
}

func Test_functionsApi_createUsers(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	crs := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 0, true)
	adminToken := app.token(t, fx.admin)

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/functions/create-student", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admins only", method: http.MethodPost, path: "/v1/functions/create-student", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"})},
		{name: "required fields", method: http.MethodPost, path: "/v1/functions/create-student", token: adminToken, wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "this field is required"})},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/functions/create-student", token: adminToken,
			body:     marshalObj(t, user.NewStudent{FullName: "Dup", Email: fx.student.Email}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "a user with this email already exists"}),
		},
		{
			name: "admin password is required", method: http.MethodPost, path: "/v1/functions/create-admin", token: adminToken,
			body:     marshalObj(t, user.NewAdmin{FullName: "Boss", Email: "boss@test.id"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "this field is required"}),
		},
	})

	t.Run("generated password", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/create-student", adminToken,
			marshalObj(t, user.NewStudent{FullName: "New One", Email: "NEW@test.id", CourseIDs: []string{crs.ID}}))
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp createStudentResponse
		decode(t, rec, &resp)
		if !resp.Success || resp.User.Email != "new@test.id" || !resp.User.IsStudent() {
			t.Errorf("failed! user = %+v", resp.User)
		}
		if resp.Password == "" {
			t.Error("failed! no generated password")
		}
		if resp.PassCode == nil || resp.PassCode.StudentID != resp.User.ID {
			t.Errorf("failed! pass code = %+v", resp.PassCode)
		}
	})

	t.Run("chosen password is not echoed", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/create-student", adminToken,
			marshalObj(t, user.NewStudent{FullName: "Other", Email: "other@test.id", Password: "Chosen#Pwd1"}))
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp createStudentResponse
		decode(t, rec, &resp)
		if resp.Password != "" || resp.PassCode != nil {
			t.Errorf("failed! resp = %+v", resp)
		}
		rec = app.do(http.MethodPost, "/v1/auth/login", "", marshalObj(t, echoapi.LoginRequest{Email: "other@test.id", Password: "Chosen#Pwd1"}))
		if rec.Code != http.StatusOK {
			t.Errorf("login: code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("create admin", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/create-admin", adminToken,
			marshalObj(t, user.NewAdmin{FullName: "Boss", Email: "boss@test.id", Password: "BossP@ss1"}))
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp createStudentResponse
		decode(t, rec, &resp)
		if !resp.User.IsAdmin() {
			t.Errorf("failed! roles = %v", resp.User.Roles)
		}
	})
}
