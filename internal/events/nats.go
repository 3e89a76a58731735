package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// DefaultStream имя JetStream-потока с событиями заявок
	DefaultStream = "ASKGRANDPA"
	// SubjectPrefix префикс субъектов событий
	SubjectPrefix = "askgrandpa.events"
)

// NATSBus публикует и читает события через NATS JetStream
type NATSBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSBus подключается к NATS и гарантирует наличие потока
func NewNATSBus(url, stream string, logger *zap.Logger, opts ...nats.Option) (*NATSBus, error) {
	if stream == "" {
		stream = DefaultStream
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{SubjectPrefix + ".>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
		logger.Info("Created JetStream stream", zap.String("stream", stream))
	}

	return &NATSBus{conn: nc, js: js, logger: logger}, nil
}

// Publish кодирует событие в конверт и публикует в субъект его типа
func (b *NATSBus) Publish(ctx context.Context, evt Event) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := Encode(evt)
	if err != nil {
		return err
	}

	if _, err := b.js.Publish(Subject(SubjectPrefix, evt.Type()), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type(), err)
	}
	return nil
}

// Subscribe создаёт durable-подписку на все события и вызывает h для каждого.
// Подписчики с одним durable в разных процессах делят поток событий.
// Нераспознанные сообщения отбрасываются через Term.
func (b *NATSBus) Subscribe(ctx context.Context, durable string, h Handler) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if h == nil {
		return errors.New("nil handler")
	}

	handler := func(msg *nats.Msg) {
		evt, err := Decode(msg.Data)
		if err != nil {
			b.logger.Warn("Dropping undecodable event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			_ = msg.Term()
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		h(handlerCtx, evt)
		_ = msg.Ack()
	}

	// Очередь с именем durable: реплики делят один консьюмер, сообщение получает одна из них
	sub, err := b.js.QueueSubscribe(SubjectPrefix+".>", durable, handler,
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", durable, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return nil
}

// Close снимает подписки и закрывает соединение
func (b *NATSBus) Close() error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil

	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
