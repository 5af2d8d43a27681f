package middleware // middleware provides reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

// UserLoader resolves a user id from a verified token to a full record.
// *repository.UserRepo satisfies it.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and loads the owning user into the request context under "user",
// "user_id" and "role". Inactive or deleted users are rejected even when
// their token is still valid. Wrap protected routes with this so handlers
// can rely on an authenticated, active user.
func JWTAuth(tokens *token.Issuer, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			uid, err := tokens.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.GetByID(ctx, uid)
			if err != nil || !u.IsActive {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set("user", u)
			c.Set("user_id", u.ID)
			c.Set("role", u.Role)
			return next(c)
		}
	}
}
