package postgres

import (
	"context"
	"fmt"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements leveling.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

var _ leveling.ProgressRepository = (*ProgressRepository)(nil)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Find returns the member's record or a NotFound error.
func (r *ProgressRepository) Find(ctx context.Context, guildID, userID string) (*leveling.UserProgress, error) {
	query := `
		SELECT guild_id, user_id, xp, ignored
		FROM users
		WHERE guild_id = $1 AND user_id = $2
	`

	var p leveling.UserProgress
	if err := r.conn.QueryRow(ctx, query, guildID, userID).Scan(&p.GuildID, &p.UserID, &p.XP, &p.Ignored); err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("leveling", "FindProgress", shared.ErrNotFound,
				fmt.Sprintf("user %s not found in guild %s", userID, guildID))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &p, nil
}

// Ensure returns the member's record, inserting an empty one if absent.
func (r *ProgressRepository) Ensure(ctx context.Context, guildID, userID string) (*leveling.UserProgress, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO users (guild_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
		RETURNING guild_id, user_id, xp, ignored
	`

	var p leveling.UserProgress
	if err := r.conn.QueryRow(ctx, query, guildID, userID).Scan(&p.GuildID, &p.UserID, &p.XP, &p.Ignored); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &p, nil
}

// IncrementXP adds delta in a single UPDATE and returns the new total, so
// concurrent grants never overwrite each other.
func (r *ProgressRepository) IncrementXP(ctx context.Context, guildID, userID string, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET xp = xp + $3
		WHERE guild_id = $1 AND user_id = $2
		RETURNING xp
	`

	var xp int64
	if err := r.conn.QueryRow(ctx, query, guildID, userID, delta).Scan(&xp); err != nil {
		if IsNoRows(err) {
			return 0, shared.NewDomainError("leveling", "IncrementXP", shared.ErrNotFound,
				fmt.Sprintf("user %s not found in guild %s", userID, guildID))
		}
		return 0, fmt.Errorf("failed to increment xp: %w", err)
	}
	return xp, nil
}
