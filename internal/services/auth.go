package services

import (
	"context"

	"chatserver/internal/models"
	"chatserver/internal/utils"
	"chatserver/pkg/logger"
	"github.com/rs/zerolog"
)

type AuthService struct {
	users  *UserService
	tokens *TokenService
	log    zerolog.Logger
}

func NewAuthService(users *UserService, tokens *TokenService) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		log:    logger.Module("auth"),
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// Register creates the account and signs the user straight in.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	user, err := s.users.Create(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Login verifies the credentials and issues a fresh pair. An unknown email
// and a wrong password produce the same error so the two cases cannot be
// told apart from outside.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, req.Email, false)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Msg("user logged in")
	return &AuthResult{User: user, Tokens: pair}, nil
}

// Refresh rotates the presented refresh token, invalidating the old pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, accessToken string) (*TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken, accessToken)
}

// Logout revokes the caller's current session.
func (s *AuthService) Logout(ctx context.Context, userID uint, accessToken string) error {
	if err := s.tokens.RevokeSession(ctx, userID, accessToken); err != nil {
		return err
	}
	s.log.Info().Uint("user_id", userID).Msg("user logged out")
	return nil
}
