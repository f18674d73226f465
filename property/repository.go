package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the listing does not exist (or no longer does).
	ErrNotFound = errors.New("property: not found")
	// ErrLandlordMissing signals the owning landlord account does not exist.
	ErrLandlordMissing = errors.New("property: landlord does not exist")
)

// Repository provides access to the listing catalog. The matching engine
// treats it as read-only; writes come from the landlord-facing API.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a listing by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Listing, error) {
	const query = `
		SELECT id, landlord_id, title, city, rent_monthly, bedrooms, furnished, available_from, created_at, updated_at
		FROM properties
		WHERE id = $1
	`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("property: get by id: %w", err)
	}
	return l, nil
}

// ListByLandlord returns the landlord's listings, newest first.
func (r *Repository) ListByLandlord(ctx context.Context, landlordID string) ([]Listing, error) {
	const query = `
		SELECT id, landlord_id, title, city, rent_monthly, bedrooms, furnished, available_from, created_at, updated_at
		FROM properties
		WHERE landlord_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, landlordID)
	if err != nil {
		return nil, fmt.Errorf("property: list by landlord: %w", err)
	}
	defer rows.Close()

	out := make([]Listing, 0, 8)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("property: scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("property: iterate listings: %w", err)
	}
	return out, nil
}

// Create inserts a new listing owned by the landlord.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Listing, error) {
	const query = `
		INSERT INTO properties (landlord_id, title, city, rent_monthly, bedrooms, furnished, available_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, landlord_id, title, city, rent_monthly, bedrooms, furnished, available_from, created_at, updated_at
	`

	l, err := scanListing(r.pool.QueryRow(ctx, query,
		params.LandlordID,
		params.Title,
		params.City,
		params.RentMonthly,
		params.Bedrooms,
		params.Furnished,
		params.AvailableFrom,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Listing{}, ErrLandlordMissing
		}
		return Listing{}, fmt.Errorf("property: create: %w", err)
	}
	return l, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	return l, row.Scan(
		&l.ID,
		&l.LandlordID,
		&l.Title,
		&l.City,
		&l.RentMonthly,
		&l.Bedrooms,
		&l.Furnished,
		&l.AvailableFrom,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}
