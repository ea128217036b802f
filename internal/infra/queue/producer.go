package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/xavierca1/leadbuffer/internal/entity"
)

const ServedEventType = "lead.served"

type ServedEvent struct {
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurredAt"`
	Lead       *entity.ServedLead `json:"lead"`
}

// Publisher is the subset of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *Producer {
	return &Producer{Ch: ch}
}

func (p *Producer) PublishServed(ctx context.Context, lead *entity.ServedLead) error {
	body, err := json.Marshal(ServedEvent{
		Type:       ServedEventType,
		OccurredAt: lead.ServedAt,
		Lead:       lead,
	})
	if err != nil {
		return fmt.Errorf("marshal served event: %w", err)
	}

	return p.publish(ctx, ServedRoutingKey, lead.ID, body)
}

// PublishPush enqueues a push batch for the ingestion consumer.
func (p *Producer) PublishPush(ctx context.Context, body []byte) error {
	return p.publish(ctx, PushRoutingKey, "", body)
}

func (p *Producer) publish(ctx context.Context, key, messageID string, body []byte) error {
	err := p.Ch.PublishWithContext(ctx,
		ExchangeName,
		key,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}
