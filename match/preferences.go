package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PGPreferenceRepository stores one current preference row per triple and an
// append-only swipe event per accepted swipe. All methods run inside the
// caller's transaction so a swipe and its match evaluation commit together.
type PGPreferenceRepository struct{}

func NewPreferenceRepository() *PGPreferenceRepository {
	return &PGPreferenceRepository{}
}

// Upsert writes the actor's current decision for the triple. A re-swipe
// overwrites the previous decision in place (last write wins) and keeps the
// original created_at. The unique constraint on the triple serializes
// concurrent writes from the same actor.
func (r *PGPreferenceRepository) Upsert(ctx context.Context, tx pgx.Tx, params SwipeParams) (Preference, error) {
	const query = `
		INSERT INTO preferences (actor_id, actor_role, counterparty_id, property_id, decision)
		VALUES ($1, $2::swipe_role, $3, $4, $5::swipe_decision)
		ON CONFLICT ON CONSTRAINT preferences_triple_key
		DO UPDATE SET decision = EXCLUDED.decision,
		              actor_role = EXCLUDED.actor_role,
		              updated_at = get_tx_timestamp()
		RETURNING id, actor_id, actor_role::text, counterparty_id, property_id, decision::text, created_at, updated_at
	`

	row := tx.QueryRow(ctx, query,
		params.ActorID,
		params.ActorRole,
		params.CounterpartyID,
		params.PropertyID,
		params.Decision,
	)

	pref, err := scanPreference(row)
	if err != nil {
		return Preference{}, fmt.Errorf("match: upsert preference: %w", err)
	}
	return pref, nil
}

// Reverse reads the counterparty's current decision toward the actor on the
// same property. The boolean reports whether the counterparty has swiped at
// all.
func (r *PGPreferenceRepository) Reverse(ctx context.Context, tx pgx.Tx, params SwipeParams) (Preference, bool, error) {
	const query = `
		SELECT id, actor_id, actor_role::text, counterparty_id, property_id, decision::text, created_at, updated_at
		FROM preferences
		WHERE actor_id = $1 AND counterparty_id = $2 AND property_id = $3
	`

	row := tx.QueryRow(ctx, query, params.CounterpartyID, params.ActorID, params.PropertyID)
	pref, err := scanPreference(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preference{}, false, nil
		}
		return Preference{}, false, fmt.Errorf("match: reverse preference: %w", err)
	}
	return pref, true, nil
}

// AppendEvent records the swipe in the audit log. Events are never updated
// or deleted.
func (r *PGPreferenceRepository) AppendEvent(ctx context.Context, tx pgx.Tx, params SwipeParams) error {
	const query = `
		INSERT INTO swipe_events (actor_id, actor_role, counterparty_id, property_id, decision)
		VALUES ($1, $2::swipe_role, $3, $4, $5::swipe_decision)
	`

	if _, err := tx.Exec(ctx, query,
		params.ActorID,
		params.ActorRole,
		params.CounterpartyID,
		params.PropertyID,
		params.Decision,
	); err != nil {
		return fmt.Errorf("match: append swipe event: %w", err)
	}
	return nil
}

func scanPreference(row pgx.Row) (Preference, error) {
	var p Preference
	return p, row.Scan(
		&p.ID,
		&p.ActorID,
		&p.ActorRole,
		&p.CounterpartyID,
		&p.PropertyID,
		&p.Decision,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
