package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/storage"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// AuthService handles registration and login.
type AuthService struct {
	store *storage.Store
	auth  *middleware.AuthMiddleware
}

func NewAuthService(store *storage.Store, auth *middleware.AuthMiddleware) *AuthService {
	return &AuthService{store: store, auth: auth}
}

// Register creates a new account and returns a signed token.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	if _, err := s.store.GetUserByUsername(req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Credentials:  make(map[string]string),
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := s.store.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return s.issueToken(user)
}

// Login verifies a password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.store.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = time.Now().UTC()
	if err := s.store.SaveUser(user); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *model.User) (*model.AuthResponse, error) {
	token, err := s.auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &model.AuthResponse{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	}, nil
}
