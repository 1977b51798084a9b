// Package amqp connects the ledger to RabbitMQ. Payment announcements and
// fee reminders each get a durable queue bound to one direct exchange.
package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"feeledger/internal/log"
)

const publishTimeout = 5 * time.Second

type Client struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	exchangeName   string
	paymentsQueue  string
	remindersQueue string
	logger         *log.Logger
}

// NewClient dials RabbitMQ and declares the exchange and both queues.
func NewClient(url, exchangeName, paymentsQueue, remindersQueue string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:           conn,
		channel:        channel,
		exchangeName:   exchangeName,
		paymentsQueue:  paymentsQueue,
		remindersQueue: remindersQueue,
		logger:         logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.paymentsQueue, c.remindersQueue} {
		_, err = c.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishPaymentPosted announces a committed payment.
func (c *Client) PublishPaymentPosted(ctx context.Context, paymentID, allocationID, studentID int64) error {
	body, err := NewPaymentPostedMessage(paymentID, allocationID, studentID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.paymentsQueue, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "published payment posted message",
		log.FieldOperation, log.OpPublish,
		log.FieldAllocationID, allocationID,
		log.FieldStudentID, studentID,
		log.FieldQueue, c.paymentsQueue)
	return nil
}

// PublishFeeReminder enqueues one overdue-fee reminder.
func (c *Client) PublishFeeReminder(ctx context.Context, allocationID, studentID int64, daysOverdue int) error {
	body, err := NewFeeReminderMessage(allocationID, studentID, daysOverdue).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.remindersQueue, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "published fee reminder message",
		log.FieldOperation, log.OpPublish,
		log.FieldAllocationID, allocationID,
		log.FieldStudentID, studentID,
		log.FieldQueue, c.remindersQueue)
	return nil
}

// ConsumeFeeReminders delivers reminder messages to handler until ctx ends.
// Handler errors requeue the delivery; unparseable deliveries are dropped.
func (c *Client) ConsumeFeeReminders(ctx context.Context, handler func(*FeeReminderMessage) error) error {
	msgs, err := c.channel.Consume(
		c.remindersQueue,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "consuming fee reminders",
		log.FieldOperation, log.OpConsume,
		log.FieldQueue, c.remindersQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := FeeReminderMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "unmarshal reminder failed", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "handle reminder failed",
					log.FieldError, err,
					log.FieldAllocationID, msg.AllocationID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

// ConsumePaymentsPosted delivers payment announcements to handler until ctx
// ends. Handler errors requeue the delivery; unparseable deliveries are
// dropped.
func (c *Client) ConsumePaymentsPosted(ctx context.Context, handler func(*PaymentPostedMessage) error) error {
	msgs, err := c.channel.Consume(
		c.paymentsQueue,
		"",    // consumer
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "consuming payment announcements",
		log.FieldOperation, log.OpConsume,
		log.FieldQueue, c.paymentsQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := PaymentPostedMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "unmarshal payment announcement failed", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "handle payment announcement failed",
					log.FieldError, err,
					log.FieldAllocationID, msg.AllocationID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
