package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/enrichment/internal/logger"
)

const maxReplayDelay = time.Hour

// DLQReplayer hands dead-lettered events back to the dispatcher. Each replay reopens the original
// outbox row and schedules the next allowed attempt with exponential backoff; entries that keep
// failing past maxRetries are quarantined for manual inspection.
type DLQReplayer struct {
	pool       *pgxpool.Pool
	log        *logger.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQReplayer constructs a DLQReplayer. Non-positive settings fall back to 5 retries and a
// one minute base delay.
func NewDLQReplayer(pool *pgxpool.Pool, log *logger.Logger, maxRetries int, baseDelay time.Duration) *DLQReplayer {
	if log == nil {
		log = logger.Nop()
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQReplayer{pool: pool, log: log, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Run replays due entries every interval until ctx is cancelled.
func (r *DLQReplayer) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		replayed, err := r.RunOnce(ctx, batchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("dlq replay failed", "error", err)
		} else if replayed > 0 {
			r.log.Info("dlq entries replayed", "count", replayed)
		}
		r.updateBacklog(ctx)
	}
}

// RunOnce processes up to batchSize due entries and returns how many were handed back to the
// outbox.
func (r *DLQReplayer) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, retry_count
        FROM outbox_dlq
        WHERE quarantined_at IS NULL AND replayed_at IS NULL AND next_retry_at <= NOW()
        ORDER BY next_retry_at, dlq_id
        LIMIT $1`

	rows, err := r.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dlqEntry, error) {
		var e dlqEntry
		err := row.Scan(&e.ID, &e.EventID, &e.EventType, &e.Topic, &e.RetryCount)
		return e, err
	})
	if err != nil {
		return 0, err
	}

	replayed := 0
	var errs error
	for _, entry := range entries {
		ok, handleErr := r.handle(ctx, entry)
		if handleErr != nil {
			errs = errors.Join(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, handleErr))
			continue
		}
		if ok {
			replayed++
		}
	}
	return replayed, errs
}

func (r *DLQReplayer) handle(ctx context.Context, entry dlqEntry) (replayed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if entry.RetryCount >= r.maxRetries {
		if _, err = tx.Exec(ctx,
			`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`,
			"retry limit reached", entry.ID,
		); err != nil {
			return false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return false, err
		}
		dlqQuarantinedCounter.WithLabelValues(entry.Topic).Inc()
		r.log.Warn("dlq entry quarantined", "event_id", entry.EventID, "event_type", entry.EventType, "retries", entry.RetryCount)
		return false, nil
	}

	tag, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NULL, claimed_at = NULL WHERE event_id = $1`, entry.EventID)
	if err != nil {
		return false, err
	}

	if tag.RowsAffected() == 0 {
		// The outbox row is gone, so there is nothing to replay. Count the attempt so the entry
		// is quarantined eventually.
		if _, err = tx.Exec(ctx,
			`UPDATE outbox_dlq
                SET retry_count = retry_count + 1,
                    last_attempt_at = NOW(),
                    next_retry_at = NOW() + $1::interval,
                    reason = $2
              WHERE dlq_id = $3`,
			backoffDelay(r.baseDelay, entry.RetryCount+1), "outbox row missing", entry.ID,
		); err != nil {
			return false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return false, err
		}
		dlqRetryCounter.WithLabelValues(entry.Topic).Inc()
		return false, nil
	}

	if _, err = tx.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                replayed_at = NOW(),
                next_retry_at = NOW() + $1::interval
          WHERE dlq_id = $2`,
		backoffDelay(r.baseDelay, entry.RetryCount+1), entry.ID,
	); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	dlqReplayedCounter.WithLabelValues(entry.Topic).Inc()
	return true, nil
}

func (r *DLQReplayer) updateBacklog(ctx context.Context) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL AND replayed_at IS NULL`,
	).Scan(&count)
	if err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}

// backoffDelay doubles base for every attempt after the first, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReplayDelay {
			return maxReplayDelay
		}
	}
	return min(delay, maxReplayDelay)
}

type dlqEntry struct {
	ID         int64
	EventID    int64
	EventType  string
	Topic      string
	RetryCount int
}
