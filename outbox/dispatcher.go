package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notifier receives committed messages. Implementations are expected to be
// their own retry authority; a returned error only bumps the attempt counter
// here.
type Notifier interface {
	Notify(ctx context.Context, topic string, payload []byte) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, topic string, payload []byte) error

func (f NotifierFunc) Notify(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// LogNotifier writes messages to the process log. Used as the default sink
// when no push backend is configured.
func LogNotifier() Notifier {
	return NotifierFunc(func(_ context.Context, topic string, payload []byte) error {
		log.Printf("outbox: deliver %s %s", topic, payload)
		return nil
	})
}

// Dispatcher drains pending messages in batches. Rows are claimed with
// FOR UPDATE SKIP LOCKED so concurrent dispatchers never double-claim, and
// the claim transaction commits before the notifier runs so a slow delivery
// never sits on row locks.
type Dispatcher struct {
	pool        *pgxpool.Pool
	notifier    Notifier
	batchSize   int
	maxAttempts int
	retryAfter  time.Duration
}

func NewDispatcher(pool *pgxpool.Pool, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		pool:        pool,
		notifier:    notifier,
		batchSize:   25,
		maxAttempts: 5,
		retryAfter:  30 * time.Second,
	}
}

// RunOnce claims one batch, delivers it, and returns how many messages were
// marked processed.
//
// Claiming bumps attempts and last_attempt and commits; delivery then runs
// outside any transaction. A message whose delivery fails simply stays
// pending with its bumped counter and is not visible to claims again until
// retryAfter has passed, which is what makes the early commit safe: a crash
// between claim and delivery looks exactly like a failed attempt.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	batch, err := d.claim(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, m := range batch {
		if err := d.notifier.Notify(ctx, m.Topic, m.Payload); err != nil {
			if m.Attempts >= d.maxAttempts {
				if _, err := d.pool.Exec(ctx,
					`UPDATE outbox SET status = 'dead' WHERE id = $1 AND status = 'pending'`,
					m.ID); err != nil {
					return processed, fmt.Errorf("outbox: mark dead: %w", err)
				}
			}
			continue
		}
		if _, err := d.pool.Exec(ctx,
			`UPDATE outbox SET status = 'processed' WHERE id = $1 AND status = 'pending'`,
			m.ID); err != nil {
			return processed, fmt.Errorf("outbox: mark processed: %w", err)
		}
		processed++
	}
	return processed, nil
}

// claim selects due pending rows, bumps their attempt bookkeeping, and
// commits. The Attempts field on the returned messages reflects the bump.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("outbox: begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const claimSQL = `
		SELECT id, topic, payload, status, attempts, created_at
		FROM outbox
		WHERE status = 'pending'
		  AND (last_attempt IS NULL OR last_attempt < now() - $2::interval)
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`
	rows, err := tx.Query(ctx, claimSQL, d.batchSize, d.retryAfter)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim batch: %w", err)
	}

	batch := make([]Message, 0, d.batchSize)
	ids := make([]string, 0, d.batchSize)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("outbox: scan message: %w", err)
		}
		m.Attempts++
		batch = append(batch, m)
		ids = append(ids, m.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate batch: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_attempt = get_tx_timestamp() WHERE id = ANY($1::uuid[])`,
		ids); err != nil {
		return nil, fmt.Errorf("outbox: record claim: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("outbox: commit claim tx: %w", err)
	}
	return batch, nil
}

// Run drains the outbox until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("outbox: dispatch batch: %v", err)
			}
		}
	}
}
