package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/kotoba-school/kotoba/apps/api/echo"
	"github.com/kotoba-school/kotoba/core/access"
	"github.com/kotoba-school/kotoba/core/user"
	emailsvc "github.com/kotoba-school/kotoba/services/email"
	testutil "github.com/kotoba-school/kotoba/tests"
)

var reqMsg = "this field is required"

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "LolC@t123", access.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.jp", "LolC@t123", access.RoleStudent, false) // 😂

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": reqMsg, "password": reqMsg}),
		},
		{
			name: "unknown email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "lol@test.jp", Password: "lol"}),
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "Invalid email or password."}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "lol"}),
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "Invalid email or password."}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Email: "ndog@test.jp", Password: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "This account has been deactivated."}),
		},
		{
			name: "signed in", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Email: student.Email, Password: "LolC@t123"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if !respData.Success || respData.Token == "" {
					t.Error("failed! empty token")
				}
				if respData.User == nil || respData.User.Email != student.Email {
					t.Errorf("failed! user = %+v", respData.User)
				}
				if respData.User.LastLogin.IsZero() {
					t.Error("failed! LastLogin not set")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_register(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "LolC@t123", access.RoleStudent, true)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name": reqMsg, "email": reqMsg,
				"password": "password must contain at least 8 characters", "password_confirm": reqMsg,
			}),
		},
		{
			name: "email taken", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Hero Two", Email: "hero@test.jp",
				Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "common password", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Name: "Kira", Email: "kira@test.jp",
				Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd",
			}),
			wantData: marchallObj(t, map[string]string{"password": "password is too common"}),
		},
		{
			name: "registered", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{
				Name: "Kira", Email: "kira@test.jp",
				Password: "LolC@t123", PasswordConfirm: "LolC@t123",
				Role: access.RoleAdmin, // ignored on self-signup
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/register"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if !respData.Success || respData.Token == "" {
					t.Error("failed! empty token")
				}
				if respData.User == nil || respData.User.Role != access.RoleStudent {
					t.Errorf("failed! self-signup must yield a student; user = %+v", respData.User)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_forgotPassword(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "LolC@t123", access.RoleStudent, true)
	successData := marchallObj(t, echoapi.MessageResponse{
		Success: true,
		Message: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	linkRegex := regexp.MustCompile(`/reset-password\?token=.+`)

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": reqMsg}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.jp"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Name, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/forgot-password"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !linkRegex.MatchString(msg.TextContent) {
						t.Errorf("failed! text content does not match linkRegex %v", linkRegex)
					}
					if !linkRegex.MatchString(msg.HTMLContent) {
						t.Errorf("failed! HTML content does not match linkRegex %v", linkRegex)
					}
				} else if len(emailsvc.SentMessages) > 0 {
					t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
				}
			}
		})
	}
}

// requestResetToken triggers a password reset for usr and pulls the token out
// of the sent mail, the same way a real user would follow the link.
func requestResetToken(t *testing.T, app echoapi.Server, usr user.User) string {
	t.Helper()

	emailsvc.SentMessages = nil // reset
	body := marchallObj(t, echoapi.PasswordResetRequest{Email: usr.Email})
	req, rec := newRequest(http.MethodPost, "/api/auth/forgot-password", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("requestResetToken() code = %v", rec.Code)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("requestResetToken() len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
	}

	tokenRegex := regexp.MustCompile(`token=([^\s"&]+)`)
	match := tokenRegex.FindStringSubmatch(emailsvc.SentMessages[0].TextContent)
	if len(match) != 2 {
		t.Fatal("requestResetToken() token not found in mail")
	}
	return match[1]
}

func Test_authApi_validateResetToken(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "LolC@t123", access.RoleStudent, true)
	token := requestResetToken(t, app, student)

	rejected := marchallObj(t, echoapi.TokenValidityResponse{Valid: false, Message: "This password reset link is invalid or has expired."})

	tests := []httpTest{
		{name: "no token", path: "/api/auth/reset-password", wantData: rejected},
		{name: "unknown token", path: "/api/auth/reset-password?token=lol", wantData: rejected},
		{
			name: "valid token", path: "/api/auth/reset-password?token=" + url.QueryEscape(token),
			wantData: marchallObj(t, echoapi.TokenValidityResponse{Valid: true, Message: "Token is valid."}),
		},
		{
			// checking must not consume: valid twice in a row
			name: "valid token again", path: "/api/auth/reset-password?token=" + url.QueryEscape(token),
			wantData: marchallObj(t, echoapi.TokenValidityResponse{Valid: true, Message: "Token is valid."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_confirmPasswordReset(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "LolC@t123", access.RoleStudent, true)
	token := requestResetToken(t, app, student)

	rejectedData := marchallObj(t, map[string]string{"token": "This password reset link is invalid or has expired."})

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"token": reqMsg, "password": "password must contain at least 8 characters", "password_confirm": reqMsg,
			}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "password_confirm must equal password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "unknown token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: rejectedData,
		},
		{
			name: "token consumed", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, Password: "NewC@t456", PasswordConfirm: "NewC@t456"}),
			wantData: marchallObj(t, echoapi.MessageResponse{Success: true, Message: "Password has been reset with the new password."}),
		},
		{
			name: "token cannot be reused", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, Password: "NewC@t789", PasswordConfirm: "NewC@t789"}),
			wantData: rejectedData,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/reset-password"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "token consumed" {
				refreshed, err := usrRepo.GetUserByID(student.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, student.PasswordHash) {
					t.Fatal("failed to update new password")
				}
			}
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.jp", "", access.RoleStudent, false) // 😂
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "", access.RoleStudent, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    testConf.AppName,
			Subject:   student.ID,
			Audience:  "Kotoba",
			ExpiresAt: now.Add(testConf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * testConf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Name:         student.Name,
		Email:        student.Email,
		Role:         string(student.EffectiveRole()),
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, isActive *bool, role access.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if role != "" {
			v.Add("role", string(role))
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().UTC()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "", access.RoleStudent, true, now)
	sensei := testutil.CreateUser(t, usrRepo, "Sensei", "sensei@test.jp", "", access.RoleTeacher, true, t1)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.jp", "", access.RoleAdmin, true, t2)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.jp", "", access.RoleStudent, false, t3) // 😂

	adminToken := getToken(t, admin)
	empty := dataBody(t, []interface{}{})

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required (student)", path: "/api/users", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin required (teacher)", path: "/api/users", token: getToken(t, sensei),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: path("", "created_at", nil, ""), token: adminToken,
			wantData: dataBody(t, []user.User{student, sensei, admin, naughty}),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "created_at", nil, ""), token: adminToken, wantData: empty},
		{
			name: "search=dog", path: path("dog", "created_at", nil, ""), token: adminToken,
			wantData: dataBody(t, []user.User{naughty}),
		},
		{
			name: "role=student", path: path("", "created_at", nil, access.RoleStudent), token: adminToken,
			wantData: dataBody(t, []user.User{student, naughty}),
		},
		{
			name: "is_active=true", path: path("", "created_at", bPtr(true), ""), token: adminToken,
			wantData: dataBody(t, []user.User{student, sensei, admin}),
		},
		{
			name: "is_active=false", path: path("", "created_at", bPtr(false), ""), token: adminToken,
			wantData: dataBody(t, []user.User{naughty}),
		},
		// ordering
		{
			name: "order by -created_at", path: path("", "-created_at", nil, ""), token: adminToken,
			wantData: dataBody(t, []user.User{naughty, admin, sensei, student}),
		},
		{
			name: "order by name", path: path("", "name", nil, ""), token: adminToken,
			wantData: dataBody(t, []user.User{admin, student, naughty, sensei}),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "-name", nil, access.RoleStudent), token: adminToken,
			wantData: dataBody(t, []user.User{naughty, student}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_updateRole(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "", access.RoleStudent, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.jp", "", access.RoleAdmin, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Auth required", path: "/api/user/" + student.ID + "/role",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", path: "/api/user/" + student.ID + "/role", token: getToken(t, student),
			body:     marchallObj(t, echoapi.RoleUpdateRequest{Role: "teacher"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid role", path: "/api/user/" + student.ID + "/role", token: adminToken,
			body:     marchallObj(t, echoapi.RoleUpdateRequest{Role: "sensei"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "role must be one of: student, teacher, admin"}),
		},
		{
			name: "guest not assignable", path: "/api/user/" + student.ID + "/role", token: adminToken,
			body:     marchallObj(t, echoapi.RoleUpdateRequest{Role: "guest"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "role must be one of: student, teacher, admin"}),
		},
		{
			name: "unknown user", path: "/api/user/lol/role", token: adminToken,
			body:     marchallObj(t, echoapi.RoleUpdateRequest{Role: "teacher"}),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, echoapi.ErrorResponse{Error: "user not found"}),
		},
		{
			name: "promoted", path: "/api/user/" + student.ID + "/role", token: adminToken,
			body:     marchallObj(t, echoapi.RoleUpdateRequest{Role: "teacher"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "promoted" {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.RoleUpdateResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if !respData.Success || respData.Message != "Role updated." {
					t.Errorf("failed! respData = %+v", respData)
				}
				if respData.User.Role != access.RoleTeacher {
					t.Errorf("failed! role = %s; want teacher", respData.User.Role)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userDetail(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "", access.RoleStudent, true)
	other := testutil.CreateUser(t, usrRepo, "Kira", "kira@test.jp", "", access.RoleStudent, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.jp", "", access.RoleAdmin, true)

	studentToken := getToken(t, student)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/api/user/" + student.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "retrieve self", method: http.MethodGet, path: "/api/user/" + student.ID, token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "others hidden from non-admin", method: http.MethodGet, path: "/api/user/" + other.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin retrieves anyone", method: http.MethodGet, path: "/api/user/" + other.ID, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, other),
		},
		{
			name: "non-admin cannot change role", method: http.MethodPut, path: "/api/user/" + student.ID, token: studentToken,
			body:     marchallObj(t, user.UpdateUser{Role: access.RoleAdmin}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "non-admin cannot self-destruct.. or destruct at all", method: http.MethodDelete, path: "/api/user/" + student.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/api/user/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "admin deletes", method: http.MethodDelete, path: "/api/user/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if _, err := usrRepo.GetUserByID(other.ID); err != user.ErrNotFound {
					t.Errorf("failed! user still exists, err = %v", err)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("update self", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Name: "Hero Reborn"})
		req, rec := newAuthRequest(http.MethodPut, "/api/user/"+student.ID, studentToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var respData user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Name != "Hero Reborn" {
			t.Errorf("failed! name = %s", respData.Name)
		}
	})
}

func Test_userApi_queryRoles(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.jp", "", access.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.jp", "", access.RoleStudent, true)

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/users/roles", getToken(t, student))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("catalog returned", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/users/roles", getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}

		var respData struct {
			Success bool                              `json:"success"`
			Data    map[access.Role]access.RoleConfig `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData.Data) != len(access.AllRoles) {
			t.Errorf("failed! len(roles) = %d; want %d", len(respData.Data), len(access.AllRoles))
		}
		if grants := respData.Data[access.RoleStudent].Grants["quiz"]; len(grants) != 2 {
			t.Errorf("failed! student quiz grants = %v", grants)
		}
	})
}
