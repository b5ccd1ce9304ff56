// Package auth authenticates the HTTP surfaces: a static key for the UI API
// and hashed bearer tokens for tool connections.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/javi11/skillvault/internal/database"
	"github.com/sethvargo/go-password/password"
)

const (
	tokenPrefix  = "svt_"
	tokenLength  = 40
	tokenDigits  = 10
	tokenSymbols = 0
)

// HashToken returns the hex sha256 digest stored for a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateToken mints a new random tool token
func GenerateToken() (string, error) {
	secret, err := password.Generate(tokenLength, tokenDigits, tokenSymbols, false, true)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenPrefix + secret, nil
}

// ConnectionCreator persists new tool connections
type ConnectionCreator interface {
	Create(ctx context.Context, conn *database.ToolConnection) error
}

// TokenService mints tool connection tokens
type TokenService struct {
	store  ConnectionCreator
	logger *slog.Logger
}

// NewTokenService creates a token service
func NewTokenService(store ConnectionCreator) *TokenService {
	return &TokenService{
		store:  store,
		logger: slog.Default().With("component", "token-service"),
	}
}

// CreateConnection stores a connection allowed to read skillIDs and returns
// the plain token. Only the digest is persisted; the token cannot be shown again.
func (s *TokenService) CreateConnection(ctx context.Context, userID, name string, skillIDs []string) (string, *database.ToolConnection, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, fmt.Errorf("user id is required")
	}

	token, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	allowed := make([]string, 0, len(skillIDs))
	for _, id := range skillIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed = append(allowed, id)
		}
	}

	conn := &database.ToolConnection{
		UserID:          userID,
		Name:            name,
		TokenHash:       HashToken(token),
		AllowedSkillIDs: allowed,
	}
	if err := s.store.Create(ctx, conn); err != nil {
		return "", nil, fmt.Errorf("failed to store connection: %w", err)
	}

	s.logger.InfoContext(ctx, "Tool connection created",
		"connection_id", conn.ID,
		"user_id", userID,
		"skills", len(allowed))

	return token, conn, nil
}
