package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"eventhub/models"
)

// TokenIssuer signs bearer tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthService owns accounts: signup, login and profile lookup.
type AuthService struct {
	store  UserStore
	tokens TokenIssuer
	log    *zap.Logger
	cost   int
	now    func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost sets the password hashing cost. Values outside bcrypt's
// range fall back to bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

func NewAuthService(store UserStore, tokens TokenIssuer, log *zap.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:  store,
		tokens: tokens,
		log:    log,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account and returns a token for it.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (string, *models.User, error) {
	if err := models.ValidateSignup(name, email, password); err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return token, u, nil
}

// Login checks the credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password are required", models.ErrInvalidInput)
	}

	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, u, nil
}

// Me returns the account behind a verified user id.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}
