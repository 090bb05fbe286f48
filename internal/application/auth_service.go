package application

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	pgrepo "github.com/wms-platform/task-service/internal/infrastructure/postgres"
	"github.com/wms-platform/task-service/internal/pkg/auth"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
)

// LoginResult carries the issued token and the authenticated user
type LoginResult struct {
	Token string       `json:"token"`
	User  *pgrepo.User `json:"user"`
}

// AuthService authenticates API users
type AuthService struct {
	users  *pgrepo.UserRepository
	tokens *auth.Tokens
	logger *logging.Logger
}

// NewAuthService creates the auth service
func NewAuthService(users *pgrepo.UserRepository, tokens *auth.Tokens, logger *logging.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent("auth-service"),
	}
}

// Login verifies the credentials and issues a bearer token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgrepo.ErrUserNotFound) {
		return nil, apperrors.ErrUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrUnauthorized("invalid credentials")
	}

	operatorID := ""
	if user.OperatorID != nil {
		operatorID = user.OperatorID.String()
	}

	token, err := s.tokens.Issue(user.ID.String(), user.Email, user.Role, operatorID)
	if err != nil {
		return nil, apperrors.ErrInternal("").Wrap(err)
	}

	s.logger.Info("User logged in", "userId", user.ID, "role", user.Role)
	return &LoginResult{Token: token, User: user}, nil
}
