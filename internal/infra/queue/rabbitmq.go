package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.leads"
	DLXName      = "ex.dlx" // Dead Letter Exchange

	PushQueueName  = "q.lead-pushes"
	PushDLQName    = "q.lead-pushes.dlq"
	PushRoutingKey = "k.push"

	ServedQueueName  = "q.lead-served"
	ServedRoutingKey = "k.served"

	prefetchCount = 16
)

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

// Healthy reports whether the broker connection is still open.
func (r *RabbitMQ) Healthy() bool {
	return r != nil && r.Conn != nil && !r.Conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.Ch != nil {
		r.Ch.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}

func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(PushDLQName, true, false, false, false, nil); err != nil {
		return err
	}

	if err := ch.QueueBind(PushDLQName, PushRoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	// Nacked pushes go to the DLX under the same key.
	pushArgs := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": PushRoutingKey,
	}
	if _, err := ch.QueueDeclare(PushQueueName, true, false, false, false, pushArgs); err != nil {
		return err
	}
	if err := ch.QueueBind(PushQueueName, PushRoutingKey, ExchangeName, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(ServedQueueName, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(ServedQueueName, ServedRoutingKey, ExchangeName, false, nil)
}
