package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_active_match",
			SQL: `SELECT tenant_id, landlord_id, property_id, COUNT(*) FROM matches
                  WHERE status = 'active'
                  GROUP BY tenant_id, landlord_id, property_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_match_backed_by_mutual_like",
			SQL: `SELECT m.id FROM matches m
                  WHERE NOT EXISTS (
                      SELECT 1 FROM swipe_events e
                      WHERE e.actor_id = m.tenant_id AND e.actor_role = 'tenant'
                        AND e.counterparty_id = m.landlord_id AND e.property_id = m.property_id
                        AND e.decision = 'like')
                     OR NOT EXISTS (
                      SELECT 1 FROM swipe_events e
                      WHERE e.actor_id = m.landlord_id AND e.actor_role = 'landlord'
                        AND e.counterparty_id = m.tenant_id AND e.property_id = m.property_id
                        AND e.decision = 'like')`,
		},
		{
			Name: "O3_dissolved_timestamp",
			SQL:  `SELECT id FROM matches WHERE (status = 'dissolved') <> (dissolved_at IS NOT NULL)`,
		},
		{
			Name: "O4_preference_matches_last_event",
			SQL: `WITH last_events AS (
                      SELECT DISTINCT ON (actor_id, counterparty_id, property_id)
                             actor_id, counterparty_id, property_id, decision
                      FROM swipe_events
                      ORDER BY actor_id, counterparty_id, property_id, id DESC)
                  SELECT p.id FROM preferences p
                  JOIN last_events e USING (actor_id, counterparty_id, property_id)
                  WHERE p.decision <> e.decision`,
		},
		{
			Name: "O5_event_per_preference",
			SQL: `SELECT p.id FROM preferences p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM swipe_events e
                      WHERE e.actor_id = p.actor_id
                        AND e.counterparty_id = p.counterparty_id
                        AND e.property_id = p.property_id)`,
		},
		{
			Name: "O6_outbox_liveness",
			SQL: `SELECT id::text FROM outbox
                  WHERE status NOT IN ('processed','dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O7_formed_event_references_match",
			SQL: `SELECT o.id FROM outbox o
                  WHERE o.topic = 'match.formed'
                    AND NOT EXISTS (
                      SELECT 1 FROM matches m WHERE m.id = (o.payload->>'match_id')::uuid)`,
		},
		{
			Name: "O8_dissolved_event_references_dissolved_match",
			SQL: `SELECT o.id FROM outbox o
                  WHERE o.topic = 'match.dissolved'
                    AND NOT EXISTS (
                      SELECT 1 FROM matches m
                      WHERE m.id = (o.payload->>'match_id')::uuid AND m.status = 'dissolved')`,
		},
		{
			// The swipe transaction that completes mutuality creates the
			// match in the same commit, and match rows are never deleted,
			// so a mutual current like with no match row of any status is
			// a lost formation. Status is not checked: a dissolve after
			// the mutual state is legal and leaves the history row.
			Name: "O9_mutual_like_leaves_match_row",
			SQL: `SELECT p1.actor_id, p2.actor_id, p1.property_id
                  FROM preferences p1
                  JOIN preferences p2
                    ON p2.actor_id = p1.counterparty_id
                   AND p2.counterparty_id = p1.actor_id
                   AND p2.property_id = p1.property_id
                  WHERE p1.actor_role = 'tenant' AND p2.actor_role = 'landlord'
                    AND p1.decision = 'like' AND p2.decision = 'like'
                    AND NOT EXISTS (
                      SELECT 1 FROM matches m
                      WHERE m.tenant_id = p1.actor_id
                        AND m.landlord_id = p2.actor_id
                        AND m.property_id = p1.property_id)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
