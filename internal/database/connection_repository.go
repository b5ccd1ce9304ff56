package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConnectionRepository handles tool-integration access tokens
type ConnectionRepository struct {
	db querier
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db querier) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, name, token_hash, allowed_skill_ids, created_at, last_used_at, revoked_at`

// Create stores a new connection. Only the token digest is persisted.
func (r *ConnectionRepository) Create(ctx context.Context, conn *ToolConnection) error {
	if conn.TokenHash == "" {
		return fmt.Errorf("token hash is required")
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	conn.CreatedAt = time.Now().UTC()

	allowed, err := encodeStrings(conn.AllowedSkillIDs)
	if err != nil {
		return fmt.Errorf("failed to encode allowed skills: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tool_connections (id, user_id, name, token_hash, allowed_skill_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, conn.ID, conn.UserID, conn.Name, conn.TokenHash, allowed, conn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tool connection: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves a connection by token digest, returning nil when absent
func (r *ConnectionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*ToolConnection, error) {
	var (
		conn    ToolConnection
		allowed string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM tool_connections WHERE token_hash = $1`, tokenHash,
	).Scan(&conn.ID, &conn.UserID, &conn.Name, &conn.TokenHash, &allowed,
		&conn.CreatedAt, &conn.LastUsedAt, &conn.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tool connection: %w", err)
	}

	conn.AllowedSkillIDs = decodeStrings(allowed)
	return &conn, nil
}

// TouchLastUsed records a successful authentication
func (r *ConnectionRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tool_connections SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

// Revoke marks a connection as revoked
func (r *ConnectionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tool_connections SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke tool connection: %w", err)
	}
	return nil
}
