package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

// ErrUserNotFound is returned when no user matches the lookup
var ErrUserNotFound = errors.New("user not found")

// User is an authenticated API principal. Operators carry a link to their
// operator record; managers do not.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	OperatorID   *uuid.UUID `json:"operatorId,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// UserRepository reads API users for authentication
type UserRepository struct {
	client *postgres.Client
}

// NewUserRepository creates a user repository
func NewUserRepository(client *postgres.Client) *UserRepository {
	return &UserRepository{client: client}
}

// GetByEmail loads one user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.client.Pool().QueryRow(ctx,
		`SELECT id, email, name, role, operator_id, password_hash, created_at
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.OperatorID, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}
