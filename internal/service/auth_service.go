// Package service holds the session controller: every account state
// transition (registration, activation, login, refresh, password reset)
// is an operation here, composing the OTP engine, token issuer, user
// store and mailer. Handlers only translate HTTP to these calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/soran-dev/marketplace-auth/internal/mailer"
	"github.com/soran-dev/marketplace-auth/internal/model"
	"github.com/soran-dev/marketplace-auth/internal/otp"
	"github.com/soran-dev/marketplace-auth/internal/queue"
	"github.com/soran-dev/marketplace-auth/internal/repository"
	"github.com/soran-dev/marketplace-auth/internal/token"
	"github.com/soran-dev/marketplace-auth/internal/utils"
)

var (
	// ErrInvalidRole: self-registration asked for a role outside
	// customer/supplier.
	ErrInvalidRole = errors.New("invalid role")
	// ErrDuplicateEmail: the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is the single error for unknown email and wrong
	// password, so login responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound: an email-addressed operation (resend, reset request)
	// matched no account.
	ErrUserNotFound = errors.New("user not found")
	// ErrMailDelivery: the activation mail could not be sent; the caller's
	// account was rolled back.
	ErrMailDelivery = errors.New("failed to send activation email")
	// ErrInvalidLink: the uid segment of a reset link did not resolve to a
	// user.
	ErrInvalidLink = errors.New("invalid link")
	// ErrInvalidResetToken: the reset link token failed its signature,
	// expiry or password-hash binding.
	ErrInvalidResetToken = errors.New("invalid or expired token")
	// ErrInvalidOTPOrEmail collapses user-not-found and code-not-found in
	// the OTP reset flow into one answer.
	ErrInvalidOTPOrEmail = errors.New("invalid OTP or email")
)

// UserStore is the persistence surface the controller needs.
// *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Activate(ctx context.Context, id uint64) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher pushes auth events to the broker. Failures are logged
// and never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Options carries the behavioral switches of the controller.
type Options struct {
	EmailSend     bool   // when false, accounts are created active and no mail goes out
	EmailFrom     string // From address on outbound mail
	ResetLinkBase string // frontend base URL reset links point at
	BcryptCost    int
}

// AuthService orchestrates the authentication session lifecycle.
type AuthService struct {
	users  UserStore
	otps   *otp.Engine
	tokens *token.Issuer
	reset  *token.ResetTokenizer
	mail   mailer.Mailer
	events EventPublisher
	log    zerolog.Logger
	opts   Options
}

func NewAuthService(users UserStore, otps *otp.Engine, tokens *token.Issuer,
	reset *token.ResetTokenizer, mail mailer.Mailer, events EventPublisher,
	log zerolog.Logger, opts Options) *AuthService {
	return &AuthService{
		users: users, otps: otps, tokens: tokens, reset: reset,
		mail: mail, events: events, log: log, opts: opts,
	}
}

// RegisterInput is the payload for both registration paths.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// RegisterResult reports how the account was created.
type RegisterResult struct {
	UserID              uint64
	PendingVerification bool // true when an activation OTP was mailed
}

// Register creates a self-service account. With mail enabled the account
// starts inactive and an activation OTP is dispatched; if the dispatch
// fails the account is deleted again so no unverifiable orphan remains.
// With mail disabled the account is active immediately.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if !model.ValidSelfRegisterRole(in.Role) {
		return RegisterResult{}, ErrInvalidRole
	}
	return s.register(ctx, in)
}

// RegisterAdmin is Register with the role forced to admin. Authorization
// (only admins may call this) is enforced by the transport layer.
func (s *AuthService) RegisterAdmin(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Role = model.RoleAdmin
	return s.register(ctx, in)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	hash, err := utils.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return RegisterResult{}, err
	}
	u := model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		IsActive:     !s.opts.EmailSend,
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return RegisterResult{}, ErrDuplicateEmail
		}
		return RegisterResult{}, err
	}
	u.ID = id

	if !s.opts.EmailSend {
		s.publish(ctx, queue.EventUserRegistered, u)
		return RegisterResult{UserID: id, PendingVerification: false}, nil
	}

	if err := s.sendActivationOTP(ctx, u); err != nil {
		// Compensating delete: an inactive account nobody can verify is
		// worse than asking the user to register again.
		if delErr := s.users.Delete(ctx, id); delErr != nil {
			s.log.Error().Err(delErr).Uint64("user_id", id).Msg("rollback after mail failure")
		}
		return RegisterResult{}, ErrMailDelivery
	}
	s.publish(ctx, queue.EventUserRegistered, u)
	return RegisterResult{UserID: id, PendingVerification: true}, nil
}

// ResendActivationOTP issues and mails a fresh registration code for an
// existing account.
func (s *AuthService) ResendActivationOTP(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.sendActivationOTP(ctx, u); err != nil {
		return ErrMailDelivery
	}
	return nil
}

func (s *AuthService) sendActivationOTP(ctx context.Context, u model.User) error {
	code, err := s.otps.Issue(ctx, u.ID, model.PurposeRegistration)
	if err != nil {
		return err
	}
	return s.mail.SendEmail(
		"Your account activation code",
		fmt.Sprintf("Your OTP is: %s", code),
		s.opts.EmailFrom,
		[]string{u.Email},
	)
}

// Activate verifies a registration OTP and flips the account active. OTP
// failures (not found, wrong purpose, expired) pass through untouched so
// the transport can report the specific reason; none of them mutate the
// user.
func (s *AuthService) Activate(ctx context.Context, email, code string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.otps.Verify(ctx, u.ID, code, model.PurposeRegistration); err != nil {
		return err
	}
	if err := s.users.Activate(ctx, u.ID); err != nil {
		return err
	}
	s.publish(ctx, queue.EventUserActivated, u)
	return nil
}

// LoginResult is either a token pair for an active account or a
// requires-verification marker for an inactive one.
type LoginResult struct {
	RequiresVerification bool
	User                 model.User
	Access               token.AccessToken
	Refresh              token.RefreshToken
}

// Login checks credentials for both active and inactive accounts. An
// inactive account with correct credentials gets a fresh activation OTP
// instead of tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !u.IsActive {
		if err := s.sendActivationOTP(ctx, u); err != nil {
			s.log.Warn().Err(err).Str("email", u.Email).Msg("activation mail on login failed")
		}
		return LoginResult{RequiresVerification: true, User: u}, nil
	}

	access, err := s.tokens.IssueAccess(u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u, Access: access, Refresh: refresh}, nil
}

// VerifyToken resolves an access token to the active user it belongs to.
// Token errors pass through; a missing or inactive user is reported as
// ErrUserNotFound.
func (s *AuthService) VerifyToken(ctx context.Context, raw string) (model.User, error) {
	uid, err := s.tokens.VerifyAccess(raw)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

// RefreshAccess exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated.
func (s *AuthService) RefreshAccess(raw string) (token.AccessToken, error) {
	uid, err := s.tokens.VerifyRefresh(raw)
	if err != nil {
		return token.AccessToken{}, err
	}
	return s.tokens.IssueAccess(uid)
}

// RequestPasswordReset mails a signed reset link for the account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	link := fmt.Sprintf("%s/forgot-password-link/verify/%s/%s/",
		s.opts.ResetLinkBase, token.EncodeUID(u.ID), s.reset.Make(u))
	if err := s.mail.SendEmail(
		"Password Reset",
		fmt.Sprintf("Click to reset your password: %s", link),
		s.opts.EmailFrom,
		[]string{u.Email},
	); err != nil {
		return ErrMailDelivery
	}
	return nil
}

// ConfirmPasswordReset validates a reset link and sets the new password.
// The token is bound to the current password hash, so a link stops
// working the moment the password changes.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, uid, tok, newPassword string) error {
	id, err := token.DecodeUID(uid)
	if err != nil {
		return ErrInvalidLink
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidLink
		}
		return err
	}
	if !s.reset.Check(u, tok) {
		return ErrInvalidResetToken
	}
	if err := s.setPassword(ctx, u, newPassword); err != nil {
		return err
	}
	return nil
}

// RequestPasswordResetOTP issues and mails a password-reset code.
func (s *AuthService) RequestPasswordResetOTP(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	code, err := s.otps.Issue(ctx, u.ID, model.PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.mail.SendEmail(
		"Your OTP for Password Reset",
		fmt.Sprintf("Your OTP is: %s", code),
		s.opts.EmailFrom,
		[]string{u.Email},
	); err != nil {
		return ErrMailDelivery
	}
	return nil
}

// ResetPasswordWithOTP verifies a password-reset code and sets the new
// password. Unknown email and unknown code collapse into
// ErrInvalidOTPOrEmail; wrong purpose and expiry stay distinct.
func (s *AuthService) ResetPasswordWithOTP(ctx context.Context, email, code, newPassword string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidOTPOrEmail
		}
		return err
	}
	if err := s.otps.Verify(ctx, u.ID, code, model.PurposePasswordReset); err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			return ErrInvalidOTPOrEmail
		}
		return err
	}
	return s.setPassword(ctx, u, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, u model.User, newPassword string) error {
	hash, err := utils.HashPassword(newPassword, s.opts.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.publish(ctx, queue.EventPasswordChanged, u)
	return nil
}

func (s *AuthService) publish(ctx context.Context, typ string, u model.User) {
	if s.events == nil {
		return
	}
	ev := queue.AuthEvent{
		Type:   typ,
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		At:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", typ).Msg("publish auth event failed")
	}
}
