package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	"github.com/angelmondragon/kartupintar-backend/pkg/metrics"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/kartupintar-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	ackTimeout          = 15 * time.Second
	pauseCeiling        = 10 * time.Second
	jitterSpan          = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

type txDB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(ctx context.Context) (int64, error)
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sender publishes one message and blocks until the broker acknowledges it.
type sender interface {
	Send(ctx context.Context, msg *gcppubsub.Message) error
}

type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txDB
	Broker   broker
	Store    outboxStore
	Resolver eventResolver
	Metrics  *metrics.OutboxMetrics
	// Senders overrides the per-topic Pub/Sub publisher, for tests.
	Senders func(topic string) sender
}

// Relay moves committed outbox rows to Pub/Sub. Each row ends up published,
// scheduled for another attempt, or parked with its last error.
type Relay struct {
	logg        *logger.Logger
	db          txDB
	broker      broker
	store       outboxStore
	resolver    eventResolver
	metrics     *metrics.OutboxMetrics
	senders     func(topic string) sender
	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("outbox repository is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		broker:      p.Broker,
		store:       p.Store,
		resolver:    p.Resolver,
		metrics:     p.Metrics,
		senders:     p.Senders,
		batch:       p.Outbox.BatchSize,
		maxAttempts: p.Outbox.MaxAttempts,
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batch <= 0 {
		r.batch = fallbackBatch
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = fallbackMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	if r.senders == nil {
		cache := map[string]sender{}
		r.senders = func(topic string) sender {
			if s, ok := cache[topic]; ok {
				return s
			}
			pub := p.Broker.Publisher(topic)
			if pub == nil {
				return nil
			}
			pub.EnableMessageOrdering = true
			s := &orderedSender{pub: pub}
			cache[topic] = s
			return s
		}
	}
	return r, nil
}

// Run polls until ctx is canceled. Failed batches back off exponentially up
// to pauseCeiling.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.broker.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	pace := pacer{base: r.poll, ceiling: pauseCeiling}
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		busy, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = pace.failure()
		case busy:
			pace.reset()
			continue
		default:
			r.reportPending(ctx)
			wait = pace.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// drain handles one batch inside a transaction so row locks hold until every
// row has been settled. It reports whether any rows were found.
func (r *Relay) drain(ctx context.Context) (bool, error) {
	found := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		found = len(rows) > 0
		for _, row := range rows {
			if err := r.settle(ctx, tx, row, r.deliver(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

type delivery struct {
	outcome outcome
	topic   string
	eventID string
	err     error
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return delivery{outcome: outcomeParked, err: fmt.Errorf("undecodable: %w", err)}
	}
	d := delivery{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}

	s := r.senders(d.topic)
	if s == nil {
		d.outcome, d.err = outcomeParked, fmt.Errorf("no publisher for topic %s", d.topic)
		return d
	}

	sendCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	started := time.Now()
	err = s.Send(sendCtx, buildMessage(row, resolved))
	r.metrics.ObservePublish(time.Since(started))

	switch {
	case err == nil:
		d.outcome = outcomePublished
	case !isRetryable(err):
		d.outcome, d.err = outcomeParked, err
	case row.AttemptCount+1 >= r.maxAttempts:
		d.outcome, d.err = outcomeParked, fmt.Errorf("attempt budget of %d spent: %w", r.maxAttempts, err)
	default:
		d.outcome, d.err = outcomeRetry, err
	}
	return d
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	r.metrics.ObserveDelivery(string(row.EventType), string(d.outcome))

	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
		"outcome":        d.outcome,
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.eventID != "" {
		fields["event_id"] = d.eventID
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	logCtx := r.logg.WithFields(ctx, fields)

	switch d.outcome {
	case outcomePublished:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event published")
	case outcomeRetry:
		if err := r.store.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		r.logg.Warn(logCtx, "outbox publish failed, will retry")
	case outcomeParked:
		// parked rows stay in outbox_events until the retention job removes them
		if err := r.store.MarkTerminalTx(tx, row.ID, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", row.ID, err)
		}
		r.logg.Warn(logCtx, "outbox event parked")
	}
	return nil
}

func (r *Relay) reportPending(ctx context.Context) {
	n, err := r.store.CountPending(ctx)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox pending count failed")
		return
	}
	r.metrics.SetPending(n)
}

// buildMessage keys every message by member so a subscriber sees one card
// holder's events in commit order.
func buildMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: orderingKey(row, resolved),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID,
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func orderingKey(row models.OutboxEvent, resolved *registry.ResolvedEvent) string {
	if trx, ok := resolved.Payload.(*payloads.TransactionRecordedEvent); ok && trx.MemberID != uuid.Nil {
		return trx.MemberID.String()
	}
	return row.AggregateID
}

// isRetryable reports whether a publish error may clear up on its own.
// Bad payloads and topic or permission problems never will.
func isRetryable(err error) bool {
	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return false
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition, codes.Unauthenticated:
		return false
	}
	return true
}

type pacer struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func (p *pacer) reset() { p.current = 0 }

func (p *pacer) idle() time.Duration {
	p.reset()
	return p.base + jitter()
}

func (p *pacer) failure() time.Duration {
	if p.current < p.base {
		p.current = p.base
	}
	p.current = min(p.current*2, p.ceiling)
	return p.current + jitter()
}

func jitter() time.Duration {
	return time.Duration(rand.Int64N(int64(jitterSpan)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type orderedSender struct {
	pub *gcppubsub.Publisher
}

// Send publishes and waits for the ack. A failed ordered publish pauses its
// key, so the key is resumed before the row is retried.
func (s *orderedSender) Send(ctx context.Context, msg *gcppubsub.Message) error {
	if _, err := s.pub.Publish(ctx, msg).Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			s.pub.ResumePublish(msg.OrderingKey)
		}
		return err
	}
	return nil
}
