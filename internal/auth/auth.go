// Package auth signs admin users in and out of the dashboard. The signed-in
// user's token is persisted in the local store, so the identity survives
// process restarts the same way a browser keeps its auth state.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goodtune/folio/internal/clock"
	"github.com/goodtune/folio/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenExpiration is the default expiration time for JWT tokens.
	// It outlasts the default absolute session timeout so the session guard,
	// not token expiry, ends the login.
	DefaultTokenExpiration = 12 * time.Hour

	// BcryptCost is the cost factor for bcrypt password hashing.
	BcryptCost = 12

	// TokenKey is the local store key holding the signed-in user's token.
	TokenKey = "admin_auth_token"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a JWT token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotSignedIn is returned when a token is valid but no longer belongs
	// to the signed-in user.
	ErrNotSignedIn = errors.New("not signed in")
)

// Claims represents the JWT claims for an admin user.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// User is the identity of the signed-in admin.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	SignedInAt time.Time `json:"signed_in_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Config holds the auth service settings.
type Config struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

// Service handles admin authentication.
type Service struct {
	users           storage.AdminUserStore
	local           storage.KV
	clock           clock.Clock
	jwtSecret       []byte
	tokenExpiration time.Duration
	logger          zerolog.Logger
}

// NewService creates a new authentication service.
func NewService(users storage.AdminUserStore, local storage.KV, cfg Config, clk clock.Clock, logger zerolog.Logger) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.TokenExpiration == 0 {
		cfg.TokenExpiration = DefaultTokenExpiration
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Service{
		users:           users,
		local:           local,
		clock:           clk,
		jwtSecret:       []byte(cfg.JWTSecret),
		tokenExpiration: cfg.TokenExpiration,
		logger:          logger.With().Str("component", "auth").Logger(),
	}, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// SignIn authenticates a user and makes them the current user.
func (s *Service) SignIn(ctx context.Context, username, password string) (*User, string, error) {
	account, err := s.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := VerifyPassword(password, account.PasswordHash); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := s.clock.Now()
	if err := s.users.UpdateLastLogin(ctx, username, now); err != nil {
		// Not fatal for the login itself
		s.logger.Warn().Err(err).Str("username", username).Msg("Failed to update last login")
	}

	token, err := s.GenerateToken(account.ID, account.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	if err := s.local.Set(ctx, TokenKey, token); err != nil {
		return nil, "", fmt.Errorf("persist token: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("Admin signed in")

	return &User{
		ID:         account.ID,
		Username:   account.Username,
		SignedInAt: now,
		ExpiresAt:  now.Add(s.tokenExpiration),
	}, token, nil
}

// CurrentUser returns the signed-in user, or nil when nobody is signed in.
// A persisted token that no longer validates is discarded.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	token, err := s.local.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Discarding invalid persisted token")
		if err := s.local.Delete(ctx, TokenKey); err != nil {
			return nil, fmt.Errorf("discard token: %w", err)
		}
		return nil, nil
	}

	return userFromClaims(claims), nil
}

// Authenticate validates a bearer token and checks that it belongs to the
// currently signed-in user. Tokens issued before a sign-out are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	current, err := s.local.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if current != token {
		return nil, ErrNotSignedIn
	}

	return userFromClaims(claims), nil
}

// SignOut forgets the current user. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.local.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.logger.Info().Msg("Admin signed out")
	return nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateToken generates a new JWT token for a user.
func (s *Service) GenerateToken(userID, username string) (string, error) {
	id, err := generateTokenID()
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signedToken, nil
}

// ChangePassword changes a user's password.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	account, err := s.users.Get(ctx, username)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := VerifyPassword(oldPassword, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	return SetPassword(ctx, s.users, account, newPassword)
}

// SetPassword replaces a user's password hash without checking the old one.
func SetPassword(ctx context.Context, users storage.AdminUserStore, account *storage.AdminUser, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	account.PasswordHash = hash
	if err := users.Upsert(ctx, *account); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func userFromClaims(claims *Claims) *User {
	user := &User{
		ID:       claims.UserID,
		Username: claims.Username,
	}
	if claims.IssuedAt != nil {
		user.SignedInAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user
}

// generateTokenID generates a random token identifier.
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
