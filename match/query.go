package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownRole signals a list request with a role outside tenant/landlord.
var ErrUnknownRole = errors.New("match: unknown role")

// QueryService shapes matches for display to one side of the triangle. It
// reads denormalized counterparty and property snapshots in a single query
// and degrades to placeholders when referenced rows have disappeared, so a
// deleted profile never hides a match the caller may still want to dissolve.
type QueryService struct {
	pool *pgxpool.Pool
}

func NewQueryService(pool *pgxpool.Pool) *QueryService {
	return &QueryService{pool: pool}
}

// ListMatches returns the caller's active matches, newest first, shaped for
// the role the caller is currently operating under. Triangles where the
// caller sits on the other side are never mixed in, even though the same
// account can hold both roles.
func (s *QueryService) ListMatches(ctx context.Context, userID string, role Role) ([]MatchView, error) {
	return s.list(ctx, userID, role, true)
}

// ListHistory returns all of the caller's matches for the role, dissolved
// ones included, newest first.
func (s *QueryService) ListHistory(ctx context.Context, userID string, role Role) ([]MatchView, error) {
	return s.list(ctx, userID, role, false)
}

func (s *QueryService) list(ctx context.Context, userID string, role Role, activeOnly bool) ([]MatchView, error) {
	if userID == "" {
		return nil, fmt.Errorf("match: missing user id")
	}
	if !role.Valid() {
		return nil, ErrUnknownRole
	}

	// The viewer column picks which triangles belong to this role; the
	// counterparty join resolves the opposite corner.
	viewerCol, counterpartyCol := "m.tenant_id", "m.landlord_id"
	if role == RoleLandlord {
		viewerCol, counterpartyCol = "m.landlord_id", "m.tenant_id"
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.tenant_id, m.landlord_id, m.property_id, m.status::text, m.created_at, m.dissolved_at,
		       u.full_name, u.avatar_url, u.bio, u.phone,
		       p.title, p.city, p.rent_monthly, p.bedrooms
		FROM matches m
		LEFT JOIN users u ON u.id = %s
		LEFT JOIN properties p ON p.id = m.property_id
		WHERE %s = $1%s
		ORDER BY m.created_at DESC
	`, counterpartyCol, viewerCol, statusFilter(activeOnly))

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("match: list matches: %w", err)
	}
	defer rows.Close()

	views := make([]MatchView, 0, 8)
	for rows.Next() {
		view, err := scanMatchView(rows, role)
		if err != nil {
			return nil, fmt.Errorf("match: scan match view: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match: iterate matches: %w", err)
	}
	return views, nil
}

func statusFilter(activeOnly bool) string {
	if activeOnly {
		return " AND m.status = 'active'"
	}
	return ""
}

func scanMatchView(row pgx.Row, role Role) (MatchView, error) {
	var (
		view        MatchView
		fullName    sql.NullString
		avatarURL   sql.NullString
		bio         sql.NullString
		phone       sql.NullString
		title       sql.NullString
		city        sql.NullString
		rentMonthly sql.NullInt64
		bedrooms    sql.NullInt32
	)

	err := row.Scan(
		&view.Match.ID,
		&view.Match.TenantID,
		&view.Match.LandlordID,
		&view.Match.PropertyID,
		&view.Match.Status,
		&view.Match.CreatedAt,
		&view.Match.DissolvedAt,
		&fullName,
		&avatarURL,
		&bio,
		&phone,
		&title,
		&city,
		&rentMonthly,
		&bedrooms,
	)
	if err != nil {
		return MatchView{}, err
	}

	view.ViewerRole = role

	counterpartyID := view.Match.LandlordID
	if role == RoleLandlord {
		counterpartyID = view.Match.TenantID
	}
	view.Counterparty = CounterpartySnapshot{
		UserID:    counterpartyID,
		FullName:  fullName.String,
		AvatarURL: avatarURL.String,
		Bio:       bio.String,
		Phone:     phone.String,
		Available: fullName.Valid,
	}
	view.Property = PropertySnapshot{
		PropertyID:  view.Match.PropertyID,
		Title:       title.String,
		City:        city.String,
		RentMonthly: rentMonthly.Int64,
		Bedrooms:    int(bedrooms.Int32),
		Available:   title.Valid,
	}

	return view, nil
}
