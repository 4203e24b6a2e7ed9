package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	echoapi "github.com/alphazero/academy/apps/api/echo"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

func Test_dashboardApi(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	public := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 0, true)
	testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Draft", 0, false)
	video := testutil.CreateVideo(t, app.CourseRepo, public.ID, "intro", 0)
	testutil.Grant(t, app.PassCodeSvc, fx.admin.ID, fx.student.ID, public.ID)

	rec := app.do(http.MethodPost, "/v1/teachers/apply", "", marshalObj(t, user.NewTeacher{
		FullName: "Tina", Email: "tina@test.id", Phone: "0812", Password: "Teach#Me42", PasswordConfirm: "Teach#Me42",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply: code = %v; body %s", rec.Code, rec.Body.String())
	}

	studentToken := app.token(t, fx.student)
	rec = app.do(http.MethodPost, "/v1/videos/"+video.ID+"/progress", studentToken, marshalObj(t, progress.RecordProgress{IsCompleted: true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: code = %v; body %s", rec.Code, rec.Body.String())
	}

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/dashboard/admin", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "admin only", method: http.MethodGet, path: "/v1/dashboard/admin", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden},
		{name: "teacher only", method: http.MethodGet, path: "/v1/dashboard/teacher", token: studentToken, wantCode: http.StatusForbidden},
		{name: "student only", method: http.MethodGet, path: "/v1/dashboard/student", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden},
	})

	t.Run("admin", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard/admin", app.token(t, fx.admin), nil)
		var got echoapi.AdminDashboard
		decode(t, rec, &got)
		want := echoapi.AdminDashboard{Students: 3, Teachers: 1, PendingTeachers: 1, Courses: 2, PendingCourses: 1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("failed! dashboard mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("teacher", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard/teacher", app.token(t, fx.teacher), nil)
		var got echoapi.TeacherDashboard
		decode(t, rec, &got)
		want := echoapi.TeacherDashboard{Courses: 2, PublishedCourses: 1, Videos: 1, Balance: revenue.Summary{TeacherID: fx.teacher.ID}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("failed! dashboard mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("student", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/dashboard/student", studentToken, nil)
		var got echoapi.StudentDashboard
		decode(t, rec, &got)
		want := echoapi.StudentDashboard{
			Courses:      1,
			Completed:    1,
			Certificates: 1,
			Progress: []progress.CourseProgress{
				{CourseID: public.ID, CourseTitle: "Go", CompletedVideos: 1, TotalVideos: 1, Percent: 100, Completed: true},
			},
		}
		if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(progress.CourseProgress{}, "Certificate")); diff != "" {
			t.Errorf("failed! dashboard mismatch (-want +got):\n%s", diff)
		}
	})
}

func Test_server_homeAndHealth(t *testing.T) {
	app := setup(t, nil)

	rec := app.do(http.MethodGet, "/", "", nil)
	if got, want := rec.Body.String(), "Welcome to "+app.Conf.AppName+" API!"; rec.Code != http.StatusOK || got != want {
		t.Errorf("home: code = %v, body %q; want %q", rec.Code, got, want)
	}

	app.run(t, []httpTest{
		{name: "no checks", method: http.MethodGet, path: "/health", wantCode: http.StatusOK, wantData: []byte(`{}`)},
	})

	srv := echoapi.NewServer(echoapi.Options{
		Conf:           app.Conf,
		Logger:         app.Logger,
		Validate:       app.Validate,
		Translator:     app.Translator,
		DisableReqLogs: true,
		HealthChecks: map[string]echoapi.HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
		UserSvc:       app.UserSvc,
		CourseSvc:     app.CourseSvc,
		ProgressSvc:   app.ProgressSvc,
		PassCodeSvc:   app.PassCodeSvc,
		RevenueSvc:    app.RevenueSvc,
		EnrollmentSvc: app.EnrollmentSvc,
		PaymentSvc:    app.PaymentSvc,
		ChatSvc:       app.ChatSvc,
		ContentSvc:    app.ContentSvc,
		MediaSvc:      app.MediaSvc,
	})
	t.Cleanup(func() { _ = srv.Close() })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusServiceUnavailable,
		wantData: marshalObj(t, map[string]string{"database": "ok", "redis": "connection refused"}),
	}, rec)
}
