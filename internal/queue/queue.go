package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ChainIdentifyQueue carries asynchronous identification requests.
	ChainIdentifyQueue = "chain_identify_queue"

	// TopicChainsIdentified is published on the pubsub exchange after a
	// queued identification run finished.
	TopicChainsIdentified = "chains.identified"

	pubsubExchange = "pubsub_exchange"

	retryTTL = int32(10000)
)

// Queues lists every work queue the worker consumes.
var Queues = []string{ChainIdentifyQueue}

// Publisher is the subset of *amqp091.Channel used for declaring and
// publishing.
type Publisher interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func connURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Dial connects to RabbitMQ, retrying while the broker is still starting.
func Dial(ctx context.Context) (*amqp091.Connection, error) {
	return util.RetryWithContext(ctx, 5, 2*time.Second, func(context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(connURL())
		if err != nil {
			logger.Warn("[Queue] RabbitMQ not reachable", "err", err)
		}
		return conn, err
	})
}

func Init(ctx context.Context) *amqp091.Connection {
	conn, err := Dial(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the pubsub exchange and, for every queue name, the
// work queue plus its _retry and _dlq companions. Messages in _retry are
// dead-lettered back to the work queue after retryTTL milliseconds.
func SetupQueues(ch Publisher, queueNames []string) error {
	err := ch.ExchangeDeclare(
		pubsubExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryTTL,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch Publisher, queueName string, data []byte, headers amqp091.Table) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

func PublishTopic(ch Publisher, topic string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		pubsubExchange,
		topic,
		false,
		false,
		publishing,
	)
}
