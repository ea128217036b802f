package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/xavierca1/leadbuffer/internal/usecase"
	"go.uber.org/zap"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consumer is the subset of *amqp.Channel the worker needs.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type PushExecutor interface {
	Execute(ctx context.Context, input usecase.PushLeadsInput) (*usecase.PushLeadsOutput, error)
}

// Worker drains q.lead-pushes into the lead buffer.
type Worker struct {
	Channel Consumer
	Push    PushExecutor
}

func NewWorker(ch Consumer, push PushExecutor) *Worker {
	return &Worker{
		Channel: ch,
		Push:    push,
	}
}

// Start blocks until ctx is cancelled or the broker closes the delivery channel.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"leadbuffer-push",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}

	log := zap.L().With(zap.String("queue", queueName))
	log.Info("push consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("push consumer stopped")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	log := zap.L().With(zap.Uint64("delivery_tag", d.DeliveryTag))

	var input usecase.PushLeadsInput
	if err := json.Unmarshal(d.Body, &input); err != nil {
		log.Warn("malformed push message", zap.Error(err))
		// Poison message. Dead-letter it so it does not block the queue.
		d.Nack(false, false)
		return
	}

	log = log.With(
		zap.String("organization_id", input.OrganizationID),
		zap.String("namespace", input.Namespace),
		zap.Int("leads", len(input.Leads)),
	)

	out, err := w.Push.Execute(ctx, input)
	switch {
	case err == nil:
		log.Info("push batch ingested",
			zap.Int("buffered", out.Buffered),
			zap.Int("skipped_already_served", out.SkippedAlreadyServed),
			zap.Int("skipped_duplicate", out.SkippedDuplicate),
		)
		d.Ack(false)
	case usecase.IsDomainError(err):
		log.Warn("push batch rejected", zap.Error(err))
		d.Nack(false, false)
	default:
		// Store failures get one redelivery before going to the DLQ.
		log.Error("push batch failed", zap.Error(err), zap.Bool("redelivered", d.Redelivered))
		d.Nack(false, !d.Redelivered)
	}
}
