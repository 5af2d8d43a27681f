package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/repository"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

type fakeLoader struct {
	users map[uint64]model.User
}

func (f *fakeLoader) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func echoHeader(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Use(mw)
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Request().Header.Get("Authorization"))
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAccessTokenFromCookie_Synthesizes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "tok123"})

	rec := echoHeader(t, AccessTokenFromCookie(), req)
	assert.Equal(t, "Bearer tok123", rec.Body.String())
}

func TestAccessTokenFromCookie_HeaderWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer explicit")
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "from-cookie"})

	rec := echoHeader(t, AccessTokenFromCookie(), req)
	assert.Equal(t, "Bearer explicit", rec.Body.String())
}

func TestAccessTokenFromCookie_NoCookieNoHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := echoHeader(t, AccessTokenFromCookie(), req)
	assert.Empty(t, rec.Body.String())
}

func newAuthedApp(t *testing.T, users *fakeLoader, iss *token.Issuer, roles ...string) *echo.Echo {
	t.Helper()
	e := echo.New()
	g := e.Group("/admin", JWTAuth(iss, users))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"role": c.Get("role")})
	})
	return e
}

func doGet(e *echo.Echo, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth_MissingToken(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	e := newAuthedApp(t, &fakeLoader{users: map[uint64]model.User{}}, iss)

	rec := doGet(e, "/admin/ping", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	e := newAuthedApp(t, &fakeLoader{users: map[uint64]model.User{}}, iss)

	rec := doGet(e, "/admin/ping", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_RefreshTokenRejected(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	users := &fakeLoader{users: map[uint64]model.User{1: {ID: 1, Role: model.RoleAdmin, IsActive: true}}}
	e := newAuthedApp(t, users, iss)

	rt, err := iss.IssueRefresh(1)
	require.NoError(t, err)
	rec := doGet(e, "/admin/ping", rt.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_InactiveUserRejected(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	users := &fakeLoader{users: map[uint64]model.User{1: {ID: 1, Role: model.RoleCustomer, IsActive: false}}}
	e := newAuthedApp(t, users, iss)

	at, err := iss.IssueAccess(1)
	require.NoError(t, err)
	rec := doGet(e, "/admin/ping", at.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_DeletedUserRejected(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	e := newAuthedApp(t, &fakeLoader{users: map[uint64]model.User{}}, iss)

	at, err := iss.IssueAccess(42)
	require.NoError(t, err)
	rec := doGet(e, "/admin/ping", at.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_Gate(t *testing.T) {
	iss := token.NewIssuer("s", 5, 24)
	users := &fakeLoader{users: map[uint64]model.User{
		1: {ID: 1, Role: model.RoleAdmin, IsActive: true},
		2: {ID: 2, Role: model.RoleCustomer, IsActive: true},
	}}
	e := newAuthedApp(t, users, iss, model.RoleAdmin)

	adminTok, _ := iss.IssueAccess(1)
	customerTok, _ := iss.IssueAccess(2)

	rec := doGet(e, "/admin/ping", adminTok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), model.RoleAdmin)

	rec = doGet(e, "/admin/ping", customerTok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
