package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	ExchangeName = "weather"

	LookupRequestedKey = "lookup.requested"
)

type Producer struct {
	// Rabbitmq DSN
	connStr  string
	exchange string

	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewProducer(connStr string) *Producer {
	return &Producer{
		connStr:  connStr,
		exchange: ExchangeName,
	}
}

func (p *Producer) Open() (err error) {
	// ensure a DSN is set before attempting to connect.
	if p.connStr == "" {
		return fmt.Errorf("connection string required")
	}

	if p.conn, err = amqp.Dial(p.connStr); err != nil {
		return errors.Wrap(err, "error opening rabbitmq connection")
	}

	if p.channel, err = p.conn.Channel(); err != nil {
		return errors.Wrap(err, "error creating amqp channel")
	}

	if err = p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "error creating the exchange")
	}

	return nil
}

func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Producer) Publish(routingKey string, data interface{}) error {
	if p.channel == nil {
		return fmt.Errorf("producer is not open")
	}

	msg, err := encode(data)
	if err != nil {
		return err
	}

	return p.channel.Publish(p.exchange, routingKey, false, false, msg)
}

func encode(data interface{}) (amqp.Publishing, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "error encoding message")
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         jsonData,
	}, nil
}

// Handler processes one delivery body. Errors are logged and the message is
// dropped; there is no redelivery.
type Handler func(body []byte) error

type Consumer struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger
}

func NewConsumer(conn *amqp.Connection, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		exchange: ExchangeName,
		logger:   logger,
	}
}

// Start blocks until the channel is closed.
func (c *Consumer) Start(queueName, routingKey string, handler Handler) error {
	ch, err := c.createChannel(routingKey, queueName)
	if err != nil {
		return errors.Wrap(err, "error creating channel")
	}
	defer ch.Close()

	messages, err := ch.Consume(queueName, "", true, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "error whilst consuming messages")
	}

	c.logger.Info("starting workers", zap.String("queue", queueName))
	go c.worker(messages, handler)

	chanErr := <-ch.NotifyClose(make(chan *amqp.Error))

	c.logger.Info("channel notified to close")

	if chanErr != nil {
		return chanErr
	}
	return nil
}

// createChannel creates a channel from the amqp connection
// and creates all of the necessary exchanges, queues, and bindings
func (c *Consumer) createChannel(routingKey, queueName string) (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "error creating amqp channel")
	}

	err = ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating the exchange")
	}

	queue, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating the queue")
	}

	err = ch.QueueBind(queue.Name, routingKey, c.exchange, false, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error binding queue to exchange")
	}

	err = ch.Qos(1, 0, false)
	if err != nil {
		return nil, errors.Wrap(err, "error configuring prefetch")
	}

	return ch, nil
}

func (c *Consumer) worker(messages <-chan amqp.Delivery, handler Handler) {
	for delivery := range messages {
		c.logger.Debug("received a message", zap.String("routingKey", delivery.RoutingKey))

		if err := handler(delivery.Body); err != nil {
			c.logger.Error("error whilst handling message", zap.Error(err))
		}
	}
}
