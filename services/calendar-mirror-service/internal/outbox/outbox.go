// Package outbox publishes mirror results (synced/failed) back onto the
// event bus through the same transactional-outbox table pattern the
// scheduling side uses.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/wctitle/titlebook/libs/db"
	"github.com/wctitle/titlebook/libs/kafkax"
	otelx "github.com/wctitle/titlebook/libs/otel"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type record struct {
	id          int64
	eventID     string
	aggregateID string
	eventType   string
	payload     []byte
	traceparent string
	tracestate  string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

// InsertStandalone wraps Insert in its own transaction for callers outside
// a larger unit of work.
func (r *Repository) InsertStandalone(ctx context.Context, evt Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := r.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, brokers string) *Publisher {
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(brokers),
		pollEvery: 2 * time.Second,
		batchSize: 50,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  p.brokers,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_id, event_type, payload, traceparent, tracestate
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, p.batchSize)
	if err != nil {
		return err
	}
	var records []record
	for rows.Next() {
		var rcd record
		if err := rows.Scan(&rcd.id, &rcd.eventID, &rcd.aggregateID, &rcd.eventType, &rcd.payload, &rcd.traceparent, &rcd.tracestate); err != nil {
			rows.Close()
			return err
		}
		records = append(records, rcd)
	}
	rows.Close()
	if rows.Err() != nil {
		return rows.Err()
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(records))
	for _, rcd := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, rcd.traceparent, rcd.tracestate)
		msg := kafka.Message{
			Topic: rcd.eventType,
			Key:   []byte(rcd.aggregateID),
			Value: rcd.payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(rcd.eventID)},
				{Key: "event_type", Value: []byte(rcd.eventType)},
			},
		}
		msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
		if err := writer.WriteMessages(ctx, msg); err != nil {
			return err
		}
		ids = append(ids, rcd.id)
	}

	_, err = tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
