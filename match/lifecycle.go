package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrUnauthorized signals a dissolve request from a user who is neither the
// tenant nor the landlord on the match.
var ErrUnauthorized = errors.New("match: requester is not a participant")

// OutboxTopicMatchDissolved is published once per dissolution.
const OutboxTopicMatchDissolved = "match.dissolved"

type lifecycleStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, matchID string) (Match, error)
	MarkDissolved(ctx context.Context, tx pgx.Tx, matchID string) (Match, error)
}

// LifecycleService owns the single legal status transition,
// active to dissolved. Dissolution is terminal and idempotent: the first call
// sets dissolved_at, repeated calls return the same row unchanged. The
// underlying preferences are untouched, so a later mutual like starts a
// fresh match under a new id.
type LifecycleService struct {
	pool   TxBeginner
	repo   lifecycleStore
	outbox outboxWriter
}

func NewLifecycleService(pool TxBeginner, repo lifecycleStore, outbox outboxWriter) *LifecycleService {
	if repo == nil {
		repo = NewMatchRepository()
	}
	return &LifecycleService{
		pool:   pool,
		repo:   repo,
		outbox: outbox,
	}
}

// Dissolve ends the match on behalf of either participant.
func (s *LifecycleService) Dissolve(ctx context.Context, matchID, requestedBy string) (Match, error) {
	if matchID == "" {
		return Match{}, fmt.Errorf("match: dissolve missing match id")
	}
	if requestedBy == "" {
		return Match{}, ErrUnauthorized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("match: begin dissolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := s.repo.GetForUpdate(ctx, tx, matchID)
	if err != nil {
		return Match{}, err
	}
	if requestedBy != m.TenantID && requestedBy != m.LandlordID {
		return Match{}, ErrUnauthorized
	}

	if m.Status == StatusDissolved {
		// Double-unmatch is success; dissolved_at keeps its first-call value.
		return m, nil
	}

	dissolved, err := s.repo.MarkDissolved(ctx, tx, matchID)
	if err != nil {
		return Match{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"match_id":     dissolved.ID,
			"tenant_id":    dissolved.TenantID,
			"landlord_id":  dissolved.LandlordID,
			"property_id":  dissolved.PropertyID,
			"dissolved_by": requestedBy,
		}
		if err := s.outbox.Enqueue(ctx, tx, OutboxTopicMatchDissolved, payload); err != nil {
			return Match{}, fmt.Errorf("match: enqueue dissolved event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Match{}, fmt.Errorf("match: commit dissolve tx: %w", err)
	}
	return dissolved, nil
}
