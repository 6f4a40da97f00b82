package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/bridgekit/pkg/events"
)

const journalLogPrefix = "journal:journal"

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Journal stores TrafficEvents. It implements events.Publisher.
type Journal struct {
	pool *pgxpool.Pool
}

// New creates a Journal on pool.
func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// PublishTraffic records one event.
func (j *Journal) PublishTraffic(ctx context.Context, event *events.TrafficEvent) error {
	recordedAt, err := time.Parse(time.RFC3339Nano, event.Timestamp)
	if err != nil {
		recordedAt = time.Now().UTC()
	}

	_, err = j.pool.Exec(ctx,
		`INSERT INTO bridge_traffic (id, direction, topic, envelope, error_code, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, string(event.Direction), event.Topic, event.Envelope, event.ErrorCode, recordedAt)
	if err != nil {
		return fmt.Errorf("%s - insert failed: %w", journalLogPrefix, err)
	}
	return nil
}

// RecentParams filters Recent.
type RecentParams struct {
	// Topic restricts results to one topic; empty means all topics.
	Topic string
	// Limit defaults to 50 and is capped at 500.
	Limit int
}

func (p RecentParams) limit() int {
	switch {
	case p.Limit <= 0:
		return defaultRecentLimit
	case p.Limit > maxRecentLimit:
		return maxRecentLimit
	}
	return p.Limit
}

// Recent returns the newest events first.
func (j *Journal) Recent(ctx context.Context, params RecentParams) ([]events.TrafficEvent, error) {
	limit := params.limit()
	slog.Debug(fmt.Sprintf("%s - Recent topic=%q limit=%d", journalLogPrefix, params.Topic, limit))

	rows, err := j.pool.Query(ctx,
		`SELECT id::text, direction, topic, envelope, error_code, recorded_at
		 FROM bridge_traffic
		 WHERE ($1 = '' OR topic = $1)
		 ORDER BY recorded_at DESC
		 LIMIT $2`, params.Topic, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - query failed: %w", journalLogPrefix, err)
	}
	defer rows.Close()

	var out []events.TrafficEvent
	for rows.Next() {
		var (
			e          events.TrafficEvent
			direction  string
			recordedAt time.Time
		)
		if err := rows.Scan(&e.ID, &direction, &e.Topic, &e.Envelope, &e.ErrorCode, &recordedAt); err != nil {
			return nil, fmt.Errorf("%s - scan failed: %w", journalLogPrefix, err)
		}
		e.Direction = events.Direction(direction)
		e.Timestamp = recordedAt.UTC().Format(time.RFC3339Nano)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - rows failed: %w", journalLogPrefix, err)
	}
	return out, nil
}

// Clear removes all recorded traffic; the schema is preserved.
func (j *Journal) Clear(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Clearing journal", journalLogPrefix))
	if _, err := j.pool.Exec(ctx, `TRUNCATE TABLE bridge_traffic`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", journalLogPrefix, err)
	}
	return nil
}

// Ping checks database connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}
