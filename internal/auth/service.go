package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabboard/collabboard/internal/domain"
)

// TokenPair is the result of a successful authentication.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service issues and refreshes tokens against the user store.
type Service struct {
	users      domain.UserRepository
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(users domain.UserRepository, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register creates a user with a bcrypt password hash and returns tokens.
func (s *Service) Register(ctx context.Context, email, name, password string) (*domain.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || name == "" || len(password) < 8 {
		return nil, nil, fmt.Errorf("auth.Service.Register: %w", domain.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.Service.Register: hash: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("auth.Service.Register: %w", err)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.Service.Register: %w", err)
	}

	return user, tokens, nil
}

// Login verifies credentials and returns tokens. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("auth.Service.Login: %w", domain.ErrUnauthorized)
		}
		return nil, nil, fmt.Errorf("auth.Service.Login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("auth.Service.Login: %w", domain.ErrUnauthorized)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.Service.Login: %w", err)
	}

	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := ValidateToken(s.secret, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Refresh: %w", err)
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("auth.Service.Refresh: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Refresh: %w", ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Refresh: %w", err)
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Refresh: %w", err)
	}

	return tokens, nil
}

func (s *Service) issuePair(user *domain.User) (*TokenPair, error) {
	access, err := IssueAccessToken(s.secret, user.ID, user.Name, user.Email, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := IssueRefreshToken(s.secret, user.ID, user.Name, user.Email, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
