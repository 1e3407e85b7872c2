package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("producer closed")

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from a single goroutine, so
// callers never wait on the broker.
type Producer struct {
	w     MessageWriter
	inbox chan kafka.Message
	// mu is held for reading while a message is sent to inbox and for writing while
	// stop is closed, so nothing is queued after the final drain.
	mu       sync.RWMutex
	stopped  bool
	stop     chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
	timeout  time.Duration
	logger   *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, logger *zap.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, logger)
}

func newProducer(w MessageWriter, buf int, logger *zap.Logger) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		stop:    make(chan struct{}),
		closed:  make(chan struct{}),
		timeout: 10 * time.Second,
		logger:  logging.OrNop(logger),
	}
}

// Start runs the write loop until ctx is done or Close is called. Queued messages are
// flushed before the writer is closed.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closed)
		done := ctx.Done()
		for {
			select {
			case <-done:
				done = nil
				// Publishers blocked on a full inbox hold mu until the loop reads again.
				go p.signalStop()
			case <-p.stop:
				p.drain()
				if err := p.w.Close(); err != nil {
					p.logger.Warn("close kafka writer", zap.Error(err))
				}
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) Publish(ctx context.Context, m kafka.Message) error {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrProducerClosed
	}

	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and waits for queued messages to be written.
func (p *Producer) Close() {
	p.signalStop()
	<-p.closed
}

func (p *Producer) signalStop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.stopped = true
		close(p.stop)
	})
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("write kafka message",
			zap.String("key", string(m.Key)),
			zap.Error(err),
		)
	}
}
