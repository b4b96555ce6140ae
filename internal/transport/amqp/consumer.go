// Package amqp consumes payment processor events from RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cimillas/ticket-inventory/internal/app"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const consumerTag = "inventoryd-payments"

// PaymentHandler applies a decoded payment event.
type PaymentHandler interface {
	Handle(ctx context.Context, ev app.PaymentEvent) error
}

// acknowledger is the part of amqp091.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeReject
)

type Config struct {
	URL      string
	Queue    string
	Prefetch int
}

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	handler PaymentHandler
	log     logrus.FieldLogger
}

// Dial connects, declares the durable queue and sets the prefetch window.
func Dial(cfg Config, handler PaymentHandler, log logrus.FieldLogger) (*Consumer, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := channel.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	if err := channel.Qos(cfg.Prefetch, 0, false); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return newConsumer(conn, channel, q.Name, handler, log), nil
}

func newConsumer(conn *amqp091.Connection, channel *amqp091.Channel, queue string, handler PaymentHandler, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   queue,
		handler: handler,
		log:     log.WithFields(logrus.Fields{"component": "payment_consumer", "queue": queue}),
	}
}

// Run consumes until ctx is cancelled. A closed delivery channel is an error
// so the supervisor can restart the process.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("payment consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("payment consumer stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("payment delivery channel closed")
			}
			c.settle(ctx, msg, msg.Body)
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d acknowledger, body []byte) {
	var err error
	switch c.process(ctx, body) {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	case outcomeReject:
		err = d.Reject(false)
	}
	if err != nil {
		c.log.WithError(err).Warn("settle delivery")
	}
}

func (c *Consumer) process(ctx context.Context, body []byte) outcome {
	var ev app.PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.ReservationID == "" {
		c.log.WithField("body", string(body)).Warn("rejecting malformed payment event")
		return outcomeReject
	}

	log := c.log.WithFields(logrus.Fields{
		"reservation_id":    ev.ReservationID,
		"payment_reference": ev.PaymentReference,
		"status":            ev.Status,
	})

	err := c.handler.Handle(ctx, ev)
	switch {
	case err == nil:
		log.Debug("payment event applied")
		return outcomeAck
	case app.PaymentOutcomeFinal(err):
		log.WithError(err).Info("payment event not applicable, acknowledged")
		return outcomeAck
	default:
		log.WithError(err).Warn("payment event failed, requeueing")
		return outcomeRequeue
	}
}

func (c *Consumer) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
