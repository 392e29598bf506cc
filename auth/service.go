// Package auth handles accounts, credentials and access tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

var (
	ErrEmailTaken        = errors.New("auth: email already registered")
	ErrBusinessNameTaken = errors.New("auth: business name already registered")
)

// Store persists users and their businesses. Lookups that find nothing
// return an error matching apperr.ErrNotFound.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	// FindUser loads the user with its Business.
	FindUser(ctx context.Context, userID uint) (*models.User, error)
	BusinessNameExists(ctx context.Context, name string) (bool, error)

	// CreateAccount inserts both rows in one transaction. A lost race on
	// a unique column returns ErrEmailTaken or ErrBusinessNameTaken.
	CreateAccount(ctx context.Context, business *models.Business, user *models.User) error

	SetResetToken(ctx context.Context, userID uint, hash string, expiresAt time.Time) error

	// SetPassword stores a new hash and clears any reset token.
	SetPassword(ctx context.Context, userID uint, hash string) error
	SetAdmin(ctx context.Context, userID uint) error
}

type SignupInput struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	BusinessName string `json:"business_name" binding:"required"`
}

// LoginInput accepts JSON or an OAuth2 password form.
type LoginInput struct {
	Email    string `json:"email" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID     uint   `json:"user_id"`
	BusinessID uint   `json:"business_id"`
	Email      string `json:"email"`
	IsAdmin    bool   `json:"is_admin"`
}

type Service struct {
	store    Store
	tokens   *Tokens
	mailer   Mailer
	resetURL string
	resetTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, tokens *Tokens, mailer Mailer, resetURL string, resetTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		mailer:   mailer,
		resetURL: resetURL,
		resetTTL: resetTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a business and its owner.
func (s *Service) Signup(ctx context.Context, in SignupInput) error {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.BusinessName)
	if email == "" {
		return apperr.Validation("Email is required")
	}
	if name == "" || len(name) > 255 {
		return apperr.Validation("Business name must be between 1 and 255 characters")
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return apperr.Conflict("Email already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	taken, err := s.store.BusinessNameExists(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("Business name already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return apperr.Persistence("Unable to create account", err)
	}
	business := &models.Business{Name: name}
	user := &models.User{Email: email, PasswordHash: hash}
	switch err := s.store.CreateAccount(ctx, business, user); {
	case errors.Is(err, ErrEmailTaken):
		return apperr.Conflict("Email already exists")
	case errors.Is(err, ErrBusinessNameTaken):
		return apperr.Conflict("Business name already exists")
	case err != nil:
		s.logger.ErrorContext(ctx, "account creation failed", "error", err)
		return apperr.Persistence("Unable to create account", err)
	}

	s.logger.InfoContext(ctx, "account created", "business_id", business.ID, "user_id", user.ID)
	return nil
}

// Login checks credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}
	if user == nil || !CheckPasswordHash(in.Password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "failed login", "email", normalizeEmail(in.Email))
		return "", apperr.Unauthorized("Invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", apperr.Persistence("Unable to issue token", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to a live identity. Deleted users
// are rejected and suspended businesses are forbidden.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()

	user, err := s.store.FindUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("User not found")
	}
	if err != nil {
		return nil, err
	}
	if user.BusinessID != claims.BusinessID {
		return nil, apperr.Unauthorized("Invalid token payload")
	}
	if user.Business != nil && user.Business.IsSuspended {
		return nil, apperr.Forbidden("Business account is suspended")
	}

	return &Identity{
		UserID:     user.ID,
		BusinessID: user.BusinessID,
		Email:      user.Email,
		IsAdmin:    user.IsAdmin,
	}, nil
}

// ForgotPassword mails a reset link when the email is registered. The
// caller cannot tell whether it was.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	secret, err := randomToken()
	if err != nil {
		return apperr.Persistence("Unable to create reset token", err)
	}
	hash, err := HashPassword(secret)
	if err != nil {
		return apperr.Persistence("Unable to create reset token", err)
	}
	if err := s.store.SetResetToken(ctx, user.ID, hash, s.now().UTC().Add(s.resetTTL)); err != nil {
		return err
	}

	token := strconv.FormatUint(uint64(user.ID), 10) + "." + secret
	link := s.resetURL + "?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link, s.resetTTL); err != nil {
		// The token stays valid; the user can request another mail.
		s.logger.ErrorContext(ctx, "password reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token of the form "<user id>.<secret>".
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	invalid := apperr.Validation("Invalid or expired reset token")

	id, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return invalid
	}
	userID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return invalid
	}
	user, err := s.store.FindUser(ctx, uint(userID))
	if errors.Is(err, apperr.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	if user.ResetTokenHash == nil || user.ResetTokenExpiresAt == nil ||
		!user.ResetTokenExpiresAt.After(s.now()) ||
		!CheckPasswordHash(secret, *user.ResetTokenHash) {
		return invalid
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return apperr.Persistence("Unable to reset password", err)
	}
	if err := s.store.SetPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

// PromoteAdmin grants platform admin rights. The shared secret must match
// and must be configured.
func (s *Service) PromoteAdmin(ctx context.Context, configured, presented, email string) error {
	if configured == "" || subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return apperr.Forbidden("Forbidden")
	}
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return err
	}
	if err := s.store.SetAdmin(ctx, user.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user promoted to admin", "user_id", user.ID)
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
