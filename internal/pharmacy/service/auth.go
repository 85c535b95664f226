package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/auth"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// AuthService handles operator authentication
type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *auth.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, jwtManager *auth.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		logger:     log,
	}
}

// LoginInput carries login credentials
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the response to a successful login
type LoginResult struct {
	Token *auth.Token      `json:"token"`
	User  *repository.User `json:"user"`
}

// Login verifies credentials and issues an access token. A missing user and
// a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		s.logger.Warn().Str("email", input.Email).Msg("failed login attempt")
		return nil, errors.InvalidCredentials()
	}

	token, err := s.jwtManager.Generate(&auth.UserInfo{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
	if err != nil {
		return nil, errors.Internal("failed to issue token")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")

	return &LoginResult{Token: token, User: user}, nil
}

// Register creates an operator account
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*repository.User, error) {
	if len(password) < 8 {
		return nil, errors.Validation(map[string]string{
			"password": "must be at least 8 characters",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user := &repository.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}
