package queue

import (
	"errors"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a failing message is re-queued through the _retry
// queue before it is parked in the _dlq.
const MaxRetries = 10

const retriesHeader = "x-retries"

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// HandleProcessingError routes a failed delivery: invalid messages and
// messages that exhausted MaxRetries go to the dead-letter queue, anything
// else to the retry queue with an incremented x-retries header. The delivery
// is acked once the copy is published and requeued if publishing fails.
func HandleProcessingError(ch Publisher, msg amqp091.Delivery, queueName string, cause error) {
	retries := retryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_retry"
	if retries >= MaxRetries || errors.Is(cause, ErrInvalidMessage) {
		target = queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	err := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
