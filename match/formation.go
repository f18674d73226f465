package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrInvalidDirection signals a swipe whose actor/counterparty roles are
	// inconsistent with the triangle, e.g. a tenant liking a property on
	// behalf of a landlord who does not own it.
	ErrInvalidDirection = errors.New("match: invalid swipe direction")
	// ErrSelfMatch signals a swipe where the actor targets their own account.
	ErrSelfMatch = errors.New("match: actor and counterparty are the same user")
)

// OutboxTopicMatchFormed is published once per match creation.
const OutboxTopicMatchFormed = "match.formed"

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type preferenceStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, params SwipeParams) (Preference, error)
	Reverse(ctx context.Context, tx pgx.Tx, params SwipeParams) (Preference, bool, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, params SwipeParams) error
}

type matchStore interface {
	LockTriangle(ctx context.Context, tx pgx.Tx, tri Triangle) error
	CreateActive(ctx context.Context, tx pgx.Tx, tri Triangle) (Match, bool, error)
	PropertyOwner(ctx context.Context, tx pgx.Tx, propertyID string) (string, bool, error)
	UserExists(ctx context.Context, tx pgx.Tx, userID string) (bool, error)
}

type outboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// FormationService records swipes and materializes matches. The preference
// write and the mutual-like evaluation run in one transaction so the caller
// either observes both effects or neither.
type FormationService struct {
	pool    TxBeginner
	prefs   preferenceStore
	matches matchStore
	outbox  outboxWriter
}

func NewFormationService(pool TxBeginner, prefs preferenceStore, matches matchStore, outbox outboxWriter) *FormationService {
	if prefs == nil {
		prefs = NewPreferenceRepository()
	}
	if matches == nil {
		matches = NewMatchRepository()
	}
	return &FormationService{
		pool:    pool,
		prefs:   prefs,
		matches: matches,
		outbox:  outbox,
	}
}

// RecordSwipe stores the actor's decision and, for a like, evaluates the
// reverse direction. A match is created at most once per triangle no matter
// how the two sides' swipes interleave; a pass never dissolves an existing
// match.
func (s *FormationService) RecordSwipe(ctx context.Context, params SwipeParams) (SwipeResult, error) {
	if err := validateSwipe(params); err != nil {
		return SwipeResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SwipeResult{}, fmt.Errorf("match: begin swipe tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tri := params.Triangle()

	// Serialize the two sides of the triangle for the rest of the
	// transaction. Each side upserts its own preference row, so the second
	// swipe would otherwise not block on the first and could read the
	// reverse preference before the first's like is committed.
	if err := s.matches.LockTriangle(ctx, tx, tri); err != nil {
		return SwipeResult{}, err
	}

	// Direction check against the catalog: when the listing still exists its
	// owner must be the landlord side of the triangle. A missing listing is
	// tolerated here and handled by the soft-fail below.
	owner, propertyExists, err := s.matches.PropertyOwner(ctx, tx, params.PropertyID)
	if err != nil {
		return SwipeResult{}, err
	}
	if propertyExists && owner != tri.LandlordID {
		return SwipeResult{}, ErrInvalidDirection
	}

	pref, err := s.prefs.Upsert(ctx, tx, params)
	if err != nil {
		return SwipeResult{}, err
	}
	if err := s.prefs.AppendEvent(ctx, tx, params); err != nil {
		return SwipeResult{}, err
	}

	result := SwipeResult{Preference: pref}

	if params.Decision == DecisionLike {
		formed, m, err := s.evaluate(ctx, tx, params, tri, propertyExists)
		if err != nil {
			return SwipeResult{}, err
		}
		result.Match = m
		result.Formed = formed
	}

	if err := tx.Commit(ctx); err != nil {
		return SwipeResult{}, fmt.Errorf("match: commit swipe tx: %w", err)
	}
	return result, nil
}

// evaluate runs the mutual-like check for a freshly recorded like. The like
// itself is always kept; when the property or counterparty has disappeared
// the evaluation soft-fails and no match is created.
func (s *FormationService) evaluate(ctx context.Context, tx pgx.Tx, params SwipeParams, tri Triangle, propertyExists bool) (bool, *Match, error) {
	if !propertyExists {
		return false, nil, nil
	}
	counterpartyExists, err := s.matches.UserExists(ctx, tx, params.CounterpartyID)
	if err != nil {
		return false, nil, err
	}
	if !counterpartyExists {
		return false, nil, nil
	}

	rev, found, err := s.prefs.Reverse(ctx, tx, params)
	if err != nil {
		return false, nil, err
	}
	if !found || rev.Decision != DecisionLike {
		return false, nil, nil
	}

	m, created, err := s.matches.CreateActive(ctx, tx, tri)
	if err != nil {
		return false, nil, err
	}
	if created && s.outbox != nil {
		payload := map[string]any{
			"match_id":    m.ID,
			"tenant_id":   m.TenantID,
			"landlord_id": m.LandlordID,
			"property_id": m.PropertyID,
		}
		if err := s.outbox.Enqueue(ctx, tx, OutboxTopicMatchFormed, payload); err != nil {
			return false, nil, fmt.Errorf("match: enqueue formed event: %w", err)
		}
	}
	return created, &m, nil
}

func validateSwipe(params SwipeParams) error {
	if params.ActorID == "" || params.CounterpartyID == "" || params.PropertyID == "" {
		return ErrInvalidDirection
	}
	if !params.ActorRole.Valid() || !params.Decision.Valid() {
		return ErrInvalidDirection
	}
	if params.ActorID == params.CounterpartyID {
		return ErrSelfMatch
	}
	return nil
}
