package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soran-dev/marketplace-auth/internal/middleware"
	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/otp"
	"github.com/soran-dev/marketplace-auth/internal/service"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

// Cookie contract shared by login, refresh and logout. Both tokens travel
// in HttpOnly, Secure, SameSite=None cookies so the browser frontend on a
// different origin can use them.
const (
	RefreshCookieName   = "refresh_token"
	accessCookieMaxAge  = 300   // seconds, matches the access token TTL
	refreshCookieMaxAge = 86400 // seconds, matches the refresh token TTL
)

// AuthHandler adapts HTTP requests to session-controller calls.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler { return &AuthHandler{Auth: a} }

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type emailReq struct {
	Email string `json:"email"`
}
type verifyOTPReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}
type resetConfirmReq struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}
type resetVerifyReq struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

type userPart struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
}

func setTokenCookie(c echo.Context, name, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearTokenCookie(c echo.Context, name string) {
	setTokenCookie(c, name, "", -1)
}

// Register: create a customer/supplier account; with mail enabled the
// account stays inactive until the OTP is verified.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleCustomer
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRole):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role, allowed roles: customer, supplier"})
		case errors.Is(err, service.ErrDuplicateEmail):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered"})
		case errors.Is(err, service.ErrMailDelivery):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send activation email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	if res.PendingVerification {
		return c.JSON(http.StatusOK, echo.Map{"message": "user created successfully, activation email sent"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "user created successfully"})
}

// RegisterAdmin: admin-only path that forces role=admin. The role gate
// runs in middleware before this handler.
func (h *AuthHandler) RegisterAdmin(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Auth.RegisterAdmin(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateEmail):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered"})
		case errors.Is(err, service.ErrMailDelivery):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send activation email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	if res.PendingVerification {
		return c.JSON(http.StatusOK, echo.Map{"message": "user created successfully, activation email sent"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "user created successfully"})
}

// ResendOTP: dispatch a fresh activation code by email.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Auth.ResendActivationOTP(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "email not found"})
		case errors.Is(err, service.ErrMailDelivery):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send activation email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resend failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "activation email sent"})
}

// VerifyOTP: activate an account with a registration code. OTP engine
// failures keep their specific reason.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/otp required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Activate(ctx, req.Email, strings.TrimSpace(req.OTP)); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, otp.ErrWrongPurpose):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "OTP is not for registration"})
		case errors.Is(err, otp.ErrExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "OTP expired"})
		case errors.Is(err, otp.ErrNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid OTP"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP verified, user activated"})
}

// Login: check credentials and either set the cookie pair or, for
// inactive accounts, trigger a fresh activation code.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// Same answer for unknown email and wrong password.
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	if res.RequiresVerification {
		return c.JSON(http.StatusOK, echo.Map{
			"success":               false,
			"requires_verification": true,
			"email":                 res.User.Email,
			"message":               "account not activated, a verification code has been sent to your email",
		})
	}

	setTokenCookie(c, middleware.AccessCookieName, res.Access.Token, accessCookieMaxAge)
	setTokenCookie(c, RefreshCookieName, res.Refresh.Token, refreshCookieMaxAge)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "login successful",
		"user": userPart{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			Role:      res.User.Role,
		},
	})
}

// VerifyToken: validate the bearer token from the Authorization header
// and return the owning profile. A missing header answers 200 with
// valid=false; the frontend uses this as a soft session probe.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "error": "access token is missing"})
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid authorization header format, use: Bearer <token>"})
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.VerifyToken(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrExpiredToken):
			return c.JSON(http.StatusOK, echo.Map{"valid": false, "error": "invalid or expired token"})
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"valid": false, "error": "user not found or inactive"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"valid":   true,
		"message": "token is valid",
		"data": echo.Map{
			"id":         u.ID,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"role":       u.Role,
			"is_active":  u.IsActive,
		},
	})
}

// Refresh: reissue the access cookie from the refresh cookie. The token
// is read from the cookie only, never from the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ck, err := c.Cookie(RefreshCookieName)
	if err != nil || ck.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication failed"})
	}

	access, err := h.Auth.RefreshAccess(ck.Value)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication failed"})
	}

	setTokenCookie(c, middleware.AccessCookieName, access.Token, accessCookieMaxAge)
	return c.JSON(http.StatusOK, echo.Map{"message": "tokens refreshed"})
}

// Logout: clear both cookies. Idempotent and always 200; the tokens stay
// valid until they expire naturally.
func (h *AuthHandler) Logout(c echo.Context) error {
	clearTokenCookie(c, middleware.AccessCookieName)
	clearTokenCookie(c, RefreshCookieName)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// PasswordResetRequest: mail a signed reset link.
func (h *AuthHandler) PasswordResetRequest(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Auth.RequestPasswordReset(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no user with this email"})
		case errors.Is(err, service.ErrMailDelivery):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send reset email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reset link sent to email"})
}

// PasswordResetConfirm: validate a reset link and set the new password.
func (h *AuthHandler) PasswordResetConfirm(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UID == "" || req.Token == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad request"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ConfirmPasswordReset(ctx, req.UID, req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLink):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid link"})
		case errors.Is(err, service.ErrInvalidResetToken):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successful"})
}

// PasswordResetOTP: mail a password-reset code.
func (h *AuthHandler) PasswordResetOTP(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Auth.RequestPasswordResetOTP(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "email not found"})
		case errors.Is(err, service.ErrMailDelivery):
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send reset email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent to email"})
}

// PasswordResetVerify: verify a reset code and set the new password.
func (h *AuthHandler) PasswordResetVerify(c echo.Context) error {
	var req resetVerifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.OTP == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/otp/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.ResetPasswordWithOTP(ctx, req.Email, strings.TrimSpace(req.OTP), req.Password); err != nil {
		switch {
		case errors.Is(err, otp.ErrWrongPurpose):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "OTP is not for password reset"})
		case errors.Is(err, otp.ErrExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "OTP expired"})
		case errors.Is(err, service.ErrInvalidOTPOrEmail):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid OTP or email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successful"})
}
