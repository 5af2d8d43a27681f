package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soran-dev/marketplace-auth/internal/middleware"
	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/otp"
	"github.com/soran-dev/marketplace-auth/internal/repository"
	"github.com/soran-dev/marketplace-auth/internal/service"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

// ----- fakes -----

type fakeUserStore struct {
	users  map[uint64]model.User
	nextID uint64
}

func newFakeUserStore() *fakeUserStore { return &fakeUserStore{users: map[uint64]model.User{}} }

func (f *fakeUserStore) Create(_ context.Context, u model.User) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, ex := range f.users {
		if ex.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.Email = email
	f.users[u.ID] = u
	return u.ID, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Activate(_ context.Context, id uint64) error {
	u := f.users[id]
	u.IsActive = true
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id uint64, hash string) error {
	u := f.users[id]
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id uint64) error {
	delete(f.users, id)
	return nil
}

type fakeOTPStore struct {
	recs   map[uint64]model.OTPCode
	nextID uint64
}

func newFakeOTPStore() *fakeOTPStore { return &fakeOTPStore{recs: map[uint64]model.OTPCode{}} }

func (f *fakeOTPStore) Create(_ context.Context, userID uint64, code, purpose string) (model.OTPCode, error) {
	f.nextID++
	rec := model.OTPCode{ID: f.nextID, UserID: userID, Code: code, Purpose: purpose, CreatedAt: time.Now().UTC()}
	f.recs[rec.ID] = rec
	return rec, nil
}

func (f *fakeOTPStore) FindByUserAndCode(_ context.Context, userID uint64, code string) (model.OTPCode, error) {
	for _, r := range f.recs {
		if r.UserID == userID && r.Code == code {
			return r, nil
		}
	}
	return model.OTPCode{}, repository.ErrOTPNotFound
}

func (f *fakeOTPStore) Consume(_ context.Context, id uint64) error {
	if _, ok := f.recs[id]; !ok {
		return repository.ErrOTPNotFound
	}
	delete(f.recs, id)
	return nil
}

type fakeMailer struct {
	bodies []string
	err    error
}

func (f *fakeMailer) SendEmail(_, body, _ string, _ []string) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.bodies)
	body := f.bodies[len(f.bodies)-1]
	i := strings.LastIndex(body, ": ")
	require.GreaterOrEqual(t, i, 0)
	return body[i+2:]
}

// ----- test app -----

type testApp struct {
	e    *echo.Echo
	mail *fakeMailer
}

func newTestApp(emailSend bool) *testApp {
	users := newFakeUserStore()
	mail := &fakeMailer{}
	issuer := token.NewIssuer("test-secret", 5, 24)
	svc := service.NewAuthService(
		users,
		otp.NewEngine(newFakeOTPStore()),
		issuer,
		token.NewResetTokenizer("test-secret", 24),
		mail,
		nil,
		zerolog.Nop(),
		service.Options{EmailSend: emailSend, EmailFrom: "noreply@example.com", ResetLinkBase: "http://localhost:3000", BcryptCost: 4},
	)
	h := NewAuthHandler(svc)

	e := echo.New()
	e.Use(middleware.AccessTokenFromCookie())
	g := e.Group("/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/verify-otp", h.VerifyOTP)
	g.POST("/login", h.Login)
	g.POST("/token/verify", h.VerifyToken)
	g.POST("/token/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/password-reset-code", h.PasswordResetOTP)
	g.POST("/password-reset-verify", h.PasswordResetVerify)
	return &testApp{e: e, mail: mail}
}

func (a *testApp) post(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func (a *testApp) registerActive(t *testing.T, email, password string) {
	t.Helper()
	rec := a.post("/v1/auth/register", `{"email":"`+email+`","password":"`+password+`","role":"customer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// ----- registration -----

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "p")

	rec := app.post("/v1/auth/register", `{"email":"a@x.com","password":"p","role":"customer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

func TestRegister_AdminRoleRejected(t *testing.T) {
	app := newTestApp(false)
	rec := app.post("/v1/auth/register", `{"email":"a@x.com","password":"p","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid role")
}

func TestRegisterThenVerifyOTP(t *testing.T) {
	app := newTestApp(true)

	rec := app.post("/v1/auth/register", `{"email":"a@x.com","password":"p","role":"customer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	code := app.mail.lastCode(t)

	rec = app.post("/v1/auth/verify-otp", `{"email":"a@x.com","otp":"`+code+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Consumed: the same code fails on the second attempt.
	rec = app.post("/v1/auth/verify-otp", `{"email":"a@x.com","otp":"`+code+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid OTP")
}

// ----- login & cookies -----

func TestLogin_SetsCookiePair(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "p")

	rec := app.post("/v1/auth/login", `{"email":"a@x.com","password":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieByName(rec, "access_token")
	refresh := cookieByName(rec, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteNoneMode, access.SameSite)
	assert.Equal(t, 300, access.MaxAge)
	assert.Equal(t, 86400, refresh.MaxAge)
	assert.NotEmpty(t, access.Value)
}

func TestLogin_SameResponseForUnknownEmailAndWrongPassword(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "right")

	recUnknown := app.post("/v1/auth/login", `{"email":"ghost@x.com","password":"x"}`)
	recWrongPw := app.post("/v1/auth/login", `{"email":"a@x.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrongPw.Code)
	assert.Equal(t, recUnknown.Body.String(), recWrongPw.Body.String())
	assert.Empty(t, recUnknown.Result().Cookies())
}

func TestLogin_InactiveGetsNoCookies(t *testing.T) {
	app := newTestApp(true)
	rec := app.post("/v1/auth/register", `{"email":"a@x.com","password":"p","role":"customer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.post("/v1/auth/login", `{"email":"a@x.com","password":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["requires_verification"])
	assert.Empty(t, rec.Result().Cookies())
}

// ----- token verify -----

func TestVerifyToken_MissingHeaderIsSoft200(t *testing.T) {
	app := newTestApp(false)
	rec := app.post("/v1/auth/token/verify", `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["valid"])
}

func TestVerifyToken_MalformedHeader(t *testing.T) {
	app := newTestApp(false)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token/verify", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyToken_ViaAccessCookie(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "p")
	login := app.post("/v1/auth/login", `{"email":"a@x.com","password":"p"}`)
	access := cookieByName(login, "access_token")
	require.NotNil(t, access)

	// No Authorization header: the cookie middleware synthesizes it.
	rec := app.post("/v1/auth/token/verify", `{}`, access)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["valid"])
}

// ----- refresh -----

func TestRefresh_MissingCookie(t *testing.T) {
	app := newTestApp(false)
	rec := app.post("/v1/auth/token/refresh", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "a failed refresh must not set cookies")
}

func TestRefresh_InvalidToken(t *testing.T) {
	app := newTestApp(false)
	rec := app.post("/v1/auth/token/refresh", "", &http.Cookie{Name: "refresh_token", Value: "junk"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_ReissuesAccessCookie(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "p")
	login := app.post("/v1/auth/login", `{"email":"a@x.com","password":"p"}`)
	refresh := cookieByName(login, "refresh_token")
	require.NotNil(t, refresh)

	rec := app.post("/v1/auth/token/refresh", "", refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieByName(rec, "access_token")
	require.NotNil(t, access)
	assert.NotEmpty(t, access.Value)
	assert.Nil(t, cookieByName(rec, "refresh_token"), "refresh token is not rotated")
}

// ----- logout -----

func TestLogout_Idempotent(t *testing.T) {
	app := newTestApp(false)

	first := app.post("/v1/auth/logout", "")
	second := app.post("/v1/auth/logout", "")

	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		assert.Equal(t, http.StatusOK, rec.Code)
		access := cookieByName(rec, "access_token")
		refresh := cookieByName(rec, "refresh_token")
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.Empty(t, access.Value)
		assert.Less(t, access.MaxAge, 0)
		assert.Less(t, refresh.MaxAge, 0)
		assert.Equal(t, http.SameSiteNoneMode, access.SameSite)
	}
	assert.Equal(t, first.Body.String(), second.Body.String())
}

// ----- OTP password reset over HTTP -----

func TestPasswordResetOTP_Flow(t *testing.T) {
	app := newTestApp(false)
	app.registerActive(t, "a@x.com", "old")

	rec := app.post("/v1/auth/password-reset-code", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	code := app.mail.lastCode(t)

	rec = app.post("/v1/auth/password-reset-verify", `{"email":"a@x.com","otp":"`+code+`","password":"new"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Old password no longer works, new one does.
	assert.Equal(t, http.StatusUnauthorized, app.post("/v1/auth/login", `{"email":"a@x.com","password":"old"}`).Code)
	assert.Equal(t, http.StatusOK, app.post("/v1/auth/login", `{"email":"a@x.com","password":"new"}`).Code)
}

func TestPasswordResetOTP_UnknownEmail404(t *testing.T) {
	app := newTestApp(false)
	rec := app.post("/v1/auth/password-reset-code", `{"email":"ghost@x.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
