// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/soran-dev/marketplace-auth/internal/handler"
	"github.com/soran-dev/marketplace-auth/internal/middleware"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

// RegisterRoutes registers routes that do not belong to any feature
// group. Currently that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Everything under
// /v1/auth is public except the admin registration path, which requires
// an authenticated admin. Token extraction from the access_token cookie
// is applied globally in main, so cookie-only browser clients reach the
// bearer-protected routes too.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *token.Issuer, users middleware.UserLoader) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/resend-otp", a.ResendOTP)
	g.POST("/verify-otp", a.VerifyOTP)
	g.POST("/login", a.Login)
	g.POST("/token/verify", a.VerifyToken)
	g.POST("/token/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/password-reset", a.PasswordResetRequest)
	g.POST("/password-reset-confirm", a.PasswordResetConfirm)
	g.POST("/password-reset-code", a.PasswordResetOTP)
	g.POST("/password-reset-verify", a.PasswordResetVerify)

	// Admin-forced registration sits behind the same gate as the admin CRUD.
	g.POST("/register/admin", a.RegisterAdmin,
		middleware.JWTAuth(tokens, users),
		middleware.RequireRole("admin"))
}

// RegisterAdmin registers the user CRUD endpoints for admins. The listing
// is additionally fronted by the Redis response cache; cacheMW may be a
// pass-through when Redis is unavailable.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, tokens *token.Issuer,
	users middleware.UserLoader, cacheMW echo.MiddlewareFunc) {
	g := e.Group("/v1/admin/users")
	g.Use(middleware.JWTAuth(tokens, users))
	g.Use(middleware.RequireRole("admin"))

	g.GET("", h.ListUsers, cacheMW)
	g.POST("", h.CreateUser)
	g.GET("/:id", h.GetUser)
	g.PUT("/:id", h.UpdateUser)
	g.DELETE("/:id", h.DeleteUser)
}
