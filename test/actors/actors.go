package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"homematch/match"
	"homematch/outbox"
)

// Swiper hammers one side of a triangle with swipes, mostly likes with the
// occasional pass, through the real formation service.
func Swiper(ctx context.Context, svc *match.FormationService, actorID string, role match.Role, counterpartyID, propertyID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		decision := match.DecisionLike
		if rand.Intn(5) == 0 {
			decision = match.DecisionPass
		}
		_, err := svc.RecordSwipe(ctx, match.SwipeParams{
			ActorID:        actorID,
			ActorRole:      role,
			CounterpartyID: counterpartyID,
			PropertyID:     propertyID,
			Decision:       decision,
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		// transient errors (chaos-killed backends) retry on the next lap
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Dissolver looks up the active match for the triangle and dissolves it as a
// random participant, racing the swipers that keep re-forming it.
func Dissolver(ctx context.Context, pool *pgxpool.Pool, svc *match.LifecycleService, tenantID, landlordID, propertyID string, stop <-chan struct{}) error {
	participants := []string{tenantID, landlordID}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var matchID string
		err := pool.QueryRow(ctx, `SELECT id FROM matches
            WHERE tenant_id=$1 AND landlord_id=$2 AND property_id=$3 AND status='active'`,
			tenantID, landlordID, propertyID).Scan(&matchID)
		if err == nil {
			_, err = svc.Dissolve(ctx, matchID, participants[rand.Intn(len(participants))])
			if err != nil && !errors.Is(err, match.ErrMatchNotFound) && ctx.Err() != nil {
				return ctx.Err()
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// RivalMatcher tries to insert competing active rows for the same triangle
// directly, stressing the partial unique index the services rely on.
func RivalMatcher(ctx context.Context, pool *pgxpool.Pool, tenantID, landlordID, propertyID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `INSERT INTO matches (tenant_id, landlord_id, property_id, status)
                                   VALUES ($1,$2,$3,'active')`, tenantID, landlordID, propertyID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique constraint
				// expected under contention
			} else if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// OutboxWorker drains the outbox through the real dispatcher with a flaky
// notifier, so both the retry and the processed paths are exercised.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	disp := outbox.NewDispatcher(pool, outbox.NotifierFunc(func(context.Context, string, []byte) error {
		if rand.Intn(10) == 0 {
			return errors.New("simulated delivery failure")
		}
		return nil
	}))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := disp.RunOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(100 * time.Millisecond)
	}
}
