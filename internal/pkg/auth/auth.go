package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Manager roles. Any of these grants access to the manager room and the
// management API surface.
var managerRoles = map[string]struct{}{
	"admin":             {},
	"warehouse_manager": {},
	"supervisor":        {},
	"manager":           {},
}

// Claims is the decoded identity carried by a bearer token
type Claims struct {
	UserID     string
	Email      string
	Roles      []string
	OperatorID string
}

// IsManager reports whether any role grants manager access
func (c *Claims) IsManager() bool {
	for _, role := range c.Roles {
		if _, ok := managerRoles[role]; ok {
			return true
		}
	}
	return false
}

// HasRole reports whether the claims carry the given role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Tokens issues and verifies HMAC-signed bearer tokens
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokens creates a token issuer/verifier. An empty secret is rejected;
// running without one would accept any token.
func NewTokens(secret string, lifetime time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Tokens{secret: []byte(secret), lifetime: lifetime}, nil
}

// Issue signs a token for the given identity
func (t *Tokens) Issue(userID, email, role, operatorID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(t.lifetime).Unix(),
	}
	if operatorID != "" {
		claims["operatorId"] = operatorID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Roles are
// collected from the single role field, the roles array and the
// space-separated scope claim, all lowercased.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.UserID = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if operatorID, ok := mapClaims["operatorId"].(string); ok {
		claims.OperatorID = operatorID
	}
	claims.Roles = extractRoles(mapClaims)

	return claims, nil
}

func extractRoles(claims jwt.MapClaims) []string {
	seen := make(map[string]struct{})
	var roles []string

	add := func(role string) {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			return
		}
		if _, dup := seen[role]; dup {
			return
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}

	if role, ok := claims["role"].(string); ok {
		add(role)
	}
	if rawRoles, ok := claims["roles"].([]any); ok {
		for _, r := range rawRoles {
			if s, ok := r.(string); ok {
				add(s)
			}
		}
	}
	if scope, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(scope) {
			add(s)
		}
	}

	return roles
}
