package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	Exchange   = "pipeline_exchange"
	RoutingKey = "simnet.run.completed"
)

// GraphCounts summarizes one persisted network.
type GraphCounts struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// RunCompleted is published once all networks and the manifest of a run
// are persisted.
type RunCompleted struct {
	RunID      string                 `json:"run_id"`
	Dataset    string                 `json:"dataset"`
	Family     string                 `json:"family"`
	Graphs     map[string]GraphCounts `json:"graphs"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Publisher delivers run notifications.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, msg RunCompleted) error
	Close() error
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Params holds the broker connection settings.
type Params struct {
	User     string
	Password string
	Host     string
	Port     string
}

// URL renders the AMQP connection URL.
func (p Params) URL() string {
	port := p.Port
	if port == "" {
		port = "5672"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", p.User, p.Password, p.Host, port)
}

// AMQPPublisher publishes to a topic exchange on RabbitMQ.
type AMQPPublisher struct {
	conn *amqp091.Connection
	ch   channel
}

// Dial connects to the broker and declares the exchange.
func Dial(params Params) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(params.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel) (*AMQPPublisher, error) {
	err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("ExchangeDeclare failed: %w", err)
	}
	return &AMQPPublisher{ch: ch}, nil
}

func (p *AMQPPublisher) PublishRunCompleted(ctx context.Context, msg RunCompleted) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		MessageId:    msg.RunID,
	}
	return p.ch.PublishWithContext(ctx, Exchange, RoutingKey, false, false, publishing)
}

func (p *AMQPPublisher) Close() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
