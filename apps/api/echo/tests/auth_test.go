package tests

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/alphazero/academy/apps/api/echo"
	"github.com/alphazero/academy/core/user"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoapi.LoginRequest{Email: reqMsg, Password: reqMsg}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Email: "lol", Password: "lol"}),
			wantData: marshalObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Email: "lol@test.id", Password: "lol"}),
			wantData: marshalObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, echoapi.LoginRequest{Email: fx.student.Email, Password: "lol"}),
			wantData: marshalObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marshalObj(t, echoapi.LoginRequest{Email: fx.naughty.Email, Password: "NDogP@ss1"}),
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/login"
	}
	app.run(t, tests)

	t.Run("valid credentials (case-insensitive email)", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/auth/login", "",
			marshalObj(t, echoapi.LoginRequest{Email: "  STUDENT@test.id ", Password: "StudP@ss1"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		if resp.Token == "" {
			t.Error("failed! empty token")
		}
		if resp.User == nil || resp.User.ID != fx.student.ID {
			t.Fatalf("failed! user = %+v; want %s", resp.User, fx.student.ID)
		}
		if resp.User.LastLogin.IsZero() {
			t.Error("failed! last_login not set")
		}
	})
}

func Test_authApi_otpLogin(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	t.Run("send-otp validates the email", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/functions/send-otp", "", marshalObj(t, echoapi.PasswordResetRequest{Email: "lol"}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "email must be a valid email address"}),
		}, rec)
	})

	t.Run("wrong code", func(t *testing.T) {
		code := app.sendOTP(t, fx.student.Email)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		rec := app.do(http.MethodPost, "/v1/auth/otp/verify", "",
			marshalObj(t, echoapi.VerifyOTPRequest{Email: fx.student.Email, Code: wrong}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid or expired code"})}, rec)
	})

	t.Run("valid code is single use", func(t *testing.T) {
		code := app.sendOTP(t, fx.student.Email)
		body := marshalObj(t, echoapi.VerifyOTPRequest{Email: fx.student.Email, Code: code})

		rec := app.do(http.MethodPost, "/v1/auth/otp/verify", "", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		if resp.Token == "" || resp.User == nil || resp.User.ID != fx.student.ID {
			t.Errorf("failed! resp = %+v", resp)
		}

		rec = app.do(http.MethodPost, "/v1/auth/otp/verify", "", body)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid or expired code"})}, rec)
	})

	t.Run("too many attempts", func(t *testing.T) {
		code := app.sendOTP(t, fx.student.Email)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		body := marshalObj(t, echoapi.VerifyOTPRequest{Email: fx.student.Email, Code: wrong})
		var rec = app.do(http.MethodPost, "/v1/auth/otp/verify", "", body)
		for i := 1; i < app.Conf.OTP.MaxAttempts; i++ {
			rec = app.do(http.MethodPost, "/v1/auth/otp/verify", "", body)
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusTooManyRequests)
		}

		// the code was burnt
		rec = app.do(http.MethodPost, "/v1/auth/otp/verify", "",
			marshalObj(t, echoapi.VerifyOTPRequest{Email: fx.student.Email, Code: code}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("no account", func(t *testing.T) {
		code := app.sendOTP(t, "ghost@test.id")
		rec := app.do(http.MethodPost, "/v1/auth/otp/verify", "",
			marshalObj(t, echoapi.VerifyOTPRequest{Email: "ghost@test.id", Code: code}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "no account is associated with this email"}),
		}, rec)
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	now := time.Now()
	claims := echoapi.GetUserClaims(app.Conf, fx.student)
	claims.OrigIssuedAt = now.Add(-2 * app.Conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	claims.StandardClaims = jwt.StandardClaims{
		Subject:   fx.student.ID,
		ExpiresAt: now.Add(time.Hour).Unix(),
		IssuedAt:  now.Unix(),
	}
	unrefreshable, err := echoapi.GenerateToken(app.Conf, claims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "inactive user not allowed", token: app.token(t, fx.naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh period expired", token: unrefreshable,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/token-refresh"
	}
	app.run(t, tests)

	t.Run("token refreshed with current roles", func(t *testing.T) {
		token := app.token(t, fx.student)
		// roles changed since the token was issued
		usr := fx.student
		usr.AddRole(user.RoleTeacher)
		if _, err := app.UserRepo.UpdateUser(context.Background(), usr); err != nil {
			t.Fatalf("UpdateUser(): %v", err)
		}

		rec := app.do(http.MethodPost, "/v1/auth/token-refresh", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		parsed := new(echoapi.Claims)
		if _, err := jwt.ParseWithClaims(resp.Token, parsed, func(*jwt.Token) (interface{}, error) {
			return []byte(app.Conf.SecretKey), nil
		}); err != nil {
			t.Fatalf("ParseWithClaims(): %v", err)
		}
		if !parsed.IsTeacher {
			t.Error("failed! refreshed token misses the teacher role")
		}
	})
}

func Test_authApi_me(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/auth/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "current user", method: http.MethodGet, path: "/v1/auth/me", token: app.token(t, fx.teacher), wantCode: http.StatusOK, wantData: marshalObj(t, fx.teacher)},
	})
}

func Test_authApi_passwordReset(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	successData := marshalObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
	tests := []struct {
		name      string
		email     string
		wantCode  int
		wantData  []byte
		emailSent bool
	}{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marshalObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{name: "unknown email", email: "lol@test.id", wantCode: http.StatusOK, wantData: successData},
		{name: "inactive user", email: fx.naughty.Email, wantCode: http.StatusOK, wantData: successData},
		{name: "known email", email: fx.student.Email, wantCode: http.StatusOK, wantData: successData, emailSent: true},
	}
	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.Mail.Reset()
			rec := app.do(http.MethodPost, "/v1/auth/password-reset", "", marshalObj(t, echoapi.PasswordResetRequest{Email: tt.email}))
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)

			sent := app.Mail.SentMessages()
			if !tt.emailSent {
				if len(sent) > 0 {
					t.Errorf("failed! len(SentMessages) = %d; want 0", len(sent))
				}
				return
			}
			if len(sent) != 1 {
				t.Fatalf("failed! len(SentMessages) = %d; want 1", len(sent))
			}
			msg := sent[0]
			if msg.To[0].Address != fx.student.Email {
				t.Errorf("failed! To = %v; want %v", msg.To[0], fx.student.Email)
			}
			if !strings.Contains(msg.TextContent, fx.student.FullName) {
				t.Errorf("failed! text content does not contain recipient's name %q", fx.student.FullName)
			}
			if !pathRegex.MatchString(msg.TextContent) || !pathRegex.MatchString(msg.HTMLContent) {
				t.Errorf("failed! content does not match %v", pathRegex)
			}
		})
	}
}

func Test_authApi_confirmPasswordReset(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	validUID := user.EncodeUID(fx.student)
	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: reqMsg, PasswordConfirm: reqMsg}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marshalObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marshalObj(t, map[string]string{"token": "invalid token"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marshalObj(t, map[string]string{"token": "invalid token"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/auth/password-reset-confirm"
	}
	app.run(t, tests)
}
