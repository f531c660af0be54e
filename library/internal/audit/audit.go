package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/Astemirdum/library-loans/library/internal/model"
	cb "github.com/Astemirdum/library-loans/pkg/circuit_breaker"
	"github.com/Astemirdum/library-loans/pkg/metrics"
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sink receives one event per finished operation. Delivery is best effort:
// callers log a returned error and carry on.
type Sink interface {
	Record(ctx context.Context, e model.AuditEvent) error
}

type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, e model.AuditEvent) error {
	s.log.Info(e.String(), zap.Stringer("event_id", e.ID))
	return nil
}

var (
	ErrQueueFull  = errors.New("audit queue is full")
	ErrSinkClosed = errors.New("audit sink is closed")
)

// KafkaSink publishes events as JSON, keyed by book so one book's history stays ordered.
// Record only enqueues; a single worker does the broker round trip behind the breaker.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	breaker  cb.CircuitBreaker
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *sarama.ProducerMessage
	done   chan struct{}
}

func NewKafkaSink(producer sarama.SyncProducer, topic string, breaker cb.CircuitBreaker, buffer int, log *zap.Logger) *KafkaSink {
	if buffer <= 0 {
		buffer = 1
	}
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		breaker:  breaker,
		log:      log.Named("audit.kafka"),
		queue:    make(chan *sarama.ProducerMessage, buffer),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *KafkaSink) Record(_ context.Context, e model.AuditEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal audit event")
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
	}
	if e.BookID != 0 {
		msg.Key = sarama.StringEncoder(strconv.Itoa(e.BookID))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *KafkaSink) run() {
	defer close(s.done)
	for msg := range s.queue {
		err := s.breaker.Call(func() error {
			_, _, err := s.producer.SendMessage(msg)
			return err
		})
		if err != nil {
			metrics.RecordAuditDropped()
			s.log.Warn("publish audit event", zap.Error(err), zap.ByteString("event", msg.Value.(sarama.ByteEncoder)))
		}
	}
}

// Close stops accepting events, drains the queue and closes the producer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.producer.Close()
}

type tee []Sink

// Tee fans an event out to every sink and returns the first failure.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Record(ctx context.Context, e model.AuditEvent) error {
	var first error
	for _, s := range t {
		if err := s.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
