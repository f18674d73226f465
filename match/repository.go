package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrMatchNotFound is returned when no match row exists for the id.
	ErrMatchNotFound = errors.New("match: not found")
)

// PGMatchRepository owns all writes to the matches table. No other component
// may touch match rows directly; that discipline is what keeps the
// one-active-match-per-triangle invariant enforceable.
type PGMatchRepository struct{}

func NewMatchRepository() *PGMatchRepository {
	return &PGMatchRepository{}
}

// LockTriangle takes a transaction-scoped advisory lock on the triangle key.
// Mutual-like evaluation reads the reverse preference with a plain SELECT,
// and the two sides write distinct preference rows, so without this lock two
// simultaneous likes could each miss the other's uncommitted row and neither
// side would form the match.
func (r *PGMatchRepository) LockTriangle(ctx context.Context, tx pgx.Tx, tri Triangle) error {
	key := tri.TenantID + "/" + tri.LandlordID + "/" + tri.PropertyID
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("match: lock triangle: %w", err)
	}
	return nil
}

// CreateActive inserts the active match for the triangle, racing safely
// against a concurrent insert from the other participant. The partial unique
// index arbitrates: the loser's insert affects no rows and the existing row
// is returned with created=false. Either way the caller observes exactly one
// active match.
func (r *PGMatchRepository) CreateActive(ctx context.Context, tx pgx.Tx, tri Triangle) (Match, bool, error) {
	const insertSQL = `
		INSERT INTO matches (tenant_id, landlord_id, property_id, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (tenant_id, landlord_id, property_id) WHERE status = 'active'
		DO NOTHING
		RETURNING id, tenant_id, landlord_id, property_id, status::text, created_at, dissolved_at
	`

	row := tx.QueryRow(ctx, insertSQL, tri.TenantID, tri.LandlordID, tri.PropertyID)
	m, err := scanMatch(row)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Serialization corner: the conflicting row committed between
			// inference and insert. Treat as already matched.
			existing, found, lookupErr := r.ActiveByTriangle(ctx, tx, tri)
			if lookupErr != nil {
				return Match{}, false, lookupErr
			}
			if found {
				return existing, false, nil
			}
			return Match{}, false, fmt.Errorf("match: create active: %w", err)
		}
		return Match{}, false, fmt.Errorf("match: create active: %w", err)
	}

	existing, found, err := r.ActiveByTriangle(ctx, tx, tri)
	if err != nil {
		return Match{}, false, err
	}
	if !found {
		return Match{}, false, fmt.Errorf("match: create active: conflict with no surviving row")
	}
	return existing, false, nil
}

// ActiveByTriangle fetches the single active match for the triangle, if any.
func (r *PGMatchRepository) ActiveByTriangle(ctx context.Context, tx pgx.Tx, tri Triangle) (Match, bool, error) {
	const query = `
		SELECT id, tenant_id, landlord_id, property_id, status::text, created_at, dissolved_at
		FROM matches
		WHERE tenant_id = $1 AND landlord_id = $2 AND property_id = $3 AND status = 'active'
	`

	row := tx.QueryRow(ctx, query, tri.TenantID, tri.LandlordID, tri.PropertyID)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, false, nil
		}
		return Match{}, false, fmt.Errorf("match: active by triangle: %w", err)
	}
	return m, true, nil
}

// GetForUpdate locks the match row for the remainder of the transaction.
func (r *PGMatchRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, matchID string) (Match, error) {
	const query = `
		SELECT id, tenant_id, landlord_id, property_id, status::text, created_at, dissolved_at
		FROM matches
		WHERE id = $1
		FOR UPDATE
	`

	m, err := scanMatch(tx.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrMatchNotFound
		}
		return Match{}, fmt.Errorf("match: get for update: %w", err)
	}
	return m, nil
}

// MarkDissolved transitions the locked row to its terminal state. dissolved_at
// is set exactly once; callers guard against re-dissolving.
func (r *PGMatchRepository) MarkDissolved(ctx context.Context, tx pgx.Tx, matchID string) (Match, error) {
	const query = `
		UPDATE matches
		SET status = 'dissolved',
		    dissolved_at = COALESCE(dissolved_at, get_tx_timestamp())
		WHERE id = $1
		RETURNING id, tenant_id, landlord_id, property_id, status::text, created_at, dissolved_at
	`

	m, err := scanMatch(tx.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrMatchNotFound
		}
		return Match{}, fmt.Errorf("match: mark dissolved: %w", err)
	}
	return m, nil
}

// PropertyOwner reports the landlord owning the property. found is false when
// the listing has been removed; callers treat that per the degraded-data
// policy rather than as an error.
func (r *PGMatchRepository) PropertyOwner(ctx context.Context, tx pgx.Tx, propertyID string) (string, bool, error) {
	var owner string
	err := tx.QueryRow(ctx, `SELECT landlord_id FROM properties WHERE id = $1`, propertyID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("match: property owner: %w", err)
	}
	return owner, true, nil
}

// UserExists reports whether the user row is still present.
func (r *PGMatchRepository) UserExists(ctx context.Context, tx pgx.Tx, userID string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("match: user exists: %w", err)
	}
	return exists, nil
}

func scanMatch(row pgx.Row) (Match, error) {
	var m Match
	return m, row.Scan(
		&m.ID,
		&m.TenantID,
		&m.LandlordID,
		&m.PropertyID,
		&m.Status,
		&m.CreatedAt,
		&m.DissolvedAt,
	)
}
