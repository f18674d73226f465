// Package profile exposes the public profile snapshot other users see. The
// matching engine consumes it read-only and tolerates absence.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the profile row no longer exists.
var ErrNotFound = errors.New("profile: not found")

// Snapshot is the subset of user fields safe to show a counterparty.
type Snapshot struct {
	UserID    string
	FullName  string
	AvatarURL string
	Bio       string
	Phone     string
	Rating    float64
	CreatedAt time.Time
}

// Repository reads public profile snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPublic fetches the public snapshot for a user.
func (r *Repository) GetPublic(ctx context.Context, userID string) (Snapshot, error) {
	const query = `
		SELECT id, full_name, COALESCE(avatar_url, ''), COALESCE(bio, ''), COALESCE(phone, ''), rating, created_at
		FROM users
		WHERE id = $1
	`

	var s Snapshot
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.FullName,
		&s.AvatarURL,
		&s.Bio,
		&s.Phone,
		&s.Rating,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("profile: get public: %w", err)
	}
	return s, nil
}
