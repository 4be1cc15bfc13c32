package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"walletledger/internal/logging"
	"walletledger/internal/storage"
)

const publishTimeout = 5 * time.Second

// Options locate the exchange.
type Options struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends ledger records to a durable topic exchange.
type Publisher struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

// Dial connects and declares the exchange.
func Dial(opts Options, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(opts.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", opts.Exchange, err)
	}

	p := newPublisher(ch, opts, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, opts Options, logger zerolog.Logger) *Publisher {
	return &Publisher{
		ch:         ch,
		exchange:   opts.Exchange,
		routingKey: opts.RoutingKey,
		logger:     logging.Component(logger, "events"),
	}
}

// Publish sends one record as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, record storage.LedgerRecord) error {
	event := NewRecordedEvent(record)
	body, err := event.ToJSON()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish ledger record %s: %w", record.TransactionID, err)
	}

	p.logger.Debug().Str("event_id", event.EventID).Str("transaction_id", record.TransactionID).Msg("ledger record published")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
