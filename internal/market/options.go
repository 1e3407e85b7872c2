package market

import (
	"context"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Option func(*deps)

func WithPublisher(p Publisher) Option {
	return func(d *deps) { d.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) { d.logger = logging.OrNop(l) }
}

func WithTracer(t trace.Tracer) Option {
	return func(d *deps) { d.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(d *deps) { d.newID = newID }
}

type deps struct {
	backend   store.Backend
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

func newDeps(backend store.Backend, opts []Option) deps {
	d := deps{
		backend:   backend,
		publisher: events.Nop{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("bookbazaar/market"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// publish runs after the unit of work has committed. A failed publish is logged and
// does not undo the operation.
func (d deps) publish(ctx context.Context, ev events.Event) {
	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.logger.Warn("publish event",
			zap.String("event_type", ev.Type),
			zap.String("aggregate_id", ev.AggregateID),
			zap.Error(err),
		)
	}
}
