package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	echoapi "github.com/alphazero/academy/apps/api/echo"
	"github.com/alphazero/academy/core/payment"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	otpRegex        = regexp.MustCompile(`\b\d{6}\b`)
)

type testApp struct {
	*testutil.Env
	srv *echoapi.Server
}

// setup wires a fresh in-memory application. gateway may be nil.
func setup(t *testing.T, gateway payment.Gateway) *testApp {
	t.Helper()
	env := testutil.NewEnv(t, gateway)
	srv := echoapi.NewServer(echoapi.Options{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		DisableReqLogs: true,
		UserSvc:        env.UserSvc,
		CourseSvc:      env.CourseSvc,
		ProgressSvc:    env.ProgressSvc,
		PassCodeSvc:    env.PassCodeSvc,
		RevenueSvc:     env.RevenueSvc,
		EnrollmentSvc:  env.EnrollmentSvc,
		PaymentSvc:     env.PaymentSvc,
		ChatSvc:        env.ChatSvc,
		ContentSvc:     env.ContentSvc,
		MediaSvc:       env.MediaSvc,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return &testApp{Env: env, srv: srv}
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(app.Conf, echoapi.GetUserClaims(app.Conf, usr))
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}
	return token
}

// do serves a JSON request; body may be nil.
func (app *testApp) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	app.srv.ServeHTTP(rec, req)
	return rec
}

// sendOTP requests a one-time code for email and reads it back from the mail.
func (app *testApp) sendOTP(t *testing.T, email string) string {
	t.Helper()
	app.Mail.Reset()
	rec := app.do(http.MethodPost, "/v1/functions/send-otp", "", marshalObj(t, echoapi.PasswordResetRequest{Email: email}))
	if rec.Code != http.StatusOK {
		t.Fatalf("send-otp: code = %v; body %s", rec.Code, rec.Body.String())
	}
	sent := app.Mail.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("send-otp: len(SentMessages) = %d; want 1", len(sent))
	}
	code := otpRegex.FindString(sent[0].TextContent)
	if code == "" {
		t.Fatalf("send-otp: no code in %q", sent[0].TextContent)
	}
	return code
}

// fixtures most API tests start from
type fixtures struct {
	admin, teacher, student, naughty user.User
}

func (app *testApp) seed(t *testing.T) fixtures {
	t.Helper()
	return fixtures{
		admin:   testutil.CreateUser(t, app.UserRepo, "Admin", "admin@test.id", "AdminP@ss1", []string{user.RoleAdmin}, true),
		teacher: testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher@test.id", "TeachP@ss1", []string{user.RoleTeacher}, true),
		student: testutil.CreateUser(t, app.UserRepo, "Student", "student@test.id", "StudP@ss1", []string{user.RoleStudent}, true),
		naughty: testutil.CreateUser(t, app.UserRepo, "N Dog", "ndog@test.id", "NDogP@ss1", []string{user.RoleStudent}, false),
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte // not compared when nil
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("json.Marshal(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	var got, want interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal(got): %v; body %s", err, rec.Body.String())
	}
	if err := json.Unmarshal(tt.wantData, &want); err != nil {
		t.Fatalf("json.Unmarshal(want): %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failed! data mismatch (-want +got):\n%s", diff)
	}
}
