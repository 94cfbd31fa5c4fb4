package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"forest-fashion/internal/auth"
	"forest-fashion/internal/models"
	"forest-fashion/internal/store"
	"forest-fashion/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// AuthService handles accounts, sessions and password resets.
type AuthService struct {
	users       UserRepository
	tokens      *auth.TokenManager
	frontendURL string
	resetTTL    time.Duration
	hashCost    int
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, tokens *auth.TokenManager, frontendURL string, resetTTL time.Duration) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		resetTTL:    resetTTL,
		hashCost:    bcrypt.DefaultCost,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// Session is a signed token plus the user it was issued for.
type Session struct {
	Token string              `json:"token"`
	User  *models.UserSummary `json:"user"`
}

// PasswordResetRequest is returned by ForgetPassword. The reset URL is
// handed back until e-mail delivery exists.
type PasswordResetRequest struct {
	ResetURL string `json:"resetUrl"`
	Email    string `json:"email"`
}

type ResetTokenInfo struct {
	Valid    bool   `json:"valid"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(name) == "" || email == "" || password == "" {
		return nil, invalid("", "Name, email and password are required")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password", "Password must be at least 6 characters long")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		util.AuthAttemptsTotal.WithLabelValues("register", "duplicate").Inc()
		return nil, invalid("email", "User already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("email", "User already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	util.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.session(user)
}

// Login checks the credentials. Unknown email and wrong password fail the
// same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
			return nil, invalid("", "Invalid credentials")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, invalid("", "Invalid credentials")
	}

	util.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return s.session(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, "User not found")
	}
	return user, nil
}

// ForgetPassword issues a reset token, replacing any earlier one of the
// user.
func (s *AuthService) ForgetPassword(ctx context.Context, email string) (*PasswordResetRequest, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("email", "Email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, orNotFound(err, "User not found with this email address")
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	reset := &models.PasswordReset{Token: token, UserID: user.ID, Email: email, CreatedAt: s.now()}
	if err := s.users.ReplacePasswordReset(ctx, reset); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	resetURL := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	s.logger.Info("Password reset requested", zap.String("user_id", user.ID), zap.String("reset_url", resetURL))

	return &PasswordResetRequest{ResetURL: resetURL, Email: email}, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return invalid("", "Token and new password are required")
	}
	if len(newPassword) < minPasswordLength {
		return invalid("newPassword", "Password must be at least 6 characters long")
	}

	reset, err := s.liveReset(ctx, token)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, reset.UserID)
	if err != nil {
		return orNotFound(err, "User not found")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.users.DeletePasswordReset(ctx, token); err != nil {
		s.logger.Warn("Failed to delete used reset token", zap.Error(err))
	}

	s.logger.Info("Password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (*ResetTokenInfo, error) {
	reset, err := s.liveReset(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, reset.UserID)
	if err != nil {
		return nil, orNotFound(err, "User not found")
	}
	return &ResetTokenInfo{Valid: true, Email: reset.Email, UserName: user.Name}, nil
}

// liveReset loads a reset token and drops it when it is past its TTL.
func (s *AuthService) liveReset(ctx context.Context, token string) (*models.PasswordReset, error) {
	bad := invalid("token", "Invalid or expired reset token")

	reset, err := s.users.GetPasswordReset(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, bad
		}
		return nil, err
	}
	if s.now().Sub(reset.CreatedAt) > s.resetTTL {
		if err := s.users.DeletePasswordReset(ctx, token); err != nil {
			s.logger.Warn("Failed to delete expired reset token", zap.Error(err))
		}
		return nil, bad
	}
	return reset, nil
}

// SeedAdmin creates the first admin account. It refuses once any admin
// exists.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	exists, err := s.users.AdminExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if exists {
		return nil, invalid("", "Admin user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("email", "User already exists")
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("Admin user created", zap.String("email", admin.Email))
	return admin, nil
}

// Authenticate verifies a bearer token and returns the caller it names.
func (s *AuthService) Authenticate(raw string) (Caller, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return Caller{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user.Summary()}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
