package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	exchanges  []string
	queues     map[string]amqp091.Table
	published  []published
	publishErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queues: map[string]amqp091.Table{}}
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.exchanges = append(f.exchanges, name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.queues[name] = args
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAcker struct {
	acks, nacks int
	requeued    bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error { a.acks++; return nil }
func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}
func (a *fakeAcker) Reject(tag uint64, requeue bool) error { return nil }

type fakeIdentifier struct {
	input  chain.IdentifyInput
	chains []common.Chain
	err    error
}

func (f *fakeIdentifier) Identify(ctx context.Context, input chain.IdentifyInput) ([]common.Chain, error) {
	f.input = input
	return f.chains, f.err
}

func TestSetupQueues(t *testing.T) {
	ch := newFakeChannel()
	require.NoError(t, SetupQueues(ch, Queues))

	assert.Equal(t, []string{pubsubExchange}, ch.exchanges)
	assert.Contains(t, ch.queues, ChainIdentifyQueue)
	assert.Contains(t, ch.queues, ChainIdentifyQueue+"_dlq")

	retryArgs := ch.queues[ChainIdentifyQueue+"_retry"]
	require.NotNil(t, retryArgs)
	assert.Equal(t, ChainIdentifyQueue, retryArgs["x-dead-letter-routing-key"])
	assert.Equal(t, retryTTL, retryArgs["x-message-ttl"])
}

func TestEnqueueIdentify(t *testing.T) {
	ch := newFakeChannel()
	min := 0.7
	msg, err := NewIdentifyMessage("case-1", &min)
	require.NoError(t, err)
	assert.Len(t, msg.CorrelationID, 21)

	require.NoError(t, EnqueueIdentify(ch, msg))
	require.Len(t, ch.published, 1)
	assert.Equal(t, ChainIdentifyQueue, ch.published[0].key)

	var decoded IdentifyMessage
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &decoded))
	assert.Equal(t, msg.CaseID, decoded.CaseID)
	require.NotNil(t, decoded.MinConfidence)
	assert.Equal(t, 0.7, *decoded.MinConfidence)
}

func TestProcessIdentifyMessage(t *testing.T) {
	ch := newFakeChannel()
	ident := &fakeIdentifier{chains: []common.Chain{
		{StartTxID: "a", EndTxID: "b", ConfidenceScore: 0.9},
		{StartTxID: "a", EndTxID: "c", ConfidenceScore: 0.65},
	}}

	body := []byte(`{"case_id":"case-1","min_confidence":0.7,"correlation_id":"abc"}`)
	require.NoError(t, ProcessIdentifyMessage(context.Background(), ident, ch, body))

	assert.Equal(t, "case-1", ident.input.CaseID)
	require.Len(t, ch.published, 1)
	assert.Equal(t, pubsubExchange, ch.published[0].exchange)
	assert.Equal(t, TopicChainsIdentified, ch.published[0].key)

	var event ChainsIdentifiedEvent
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &event))
	assert.Equal(t, "abc", event.CorrelationID)
	assert.Equal(t, 2, event.ChainsIdentified)
	assert.Equal(t, 1, event.LowConfidenceChains)
}

func TestProcessIdentifyMessageInvalid(t *testing.T) {
	ch := newFakeChannel()
	ident := &fakeIdentifier{}

	for _, body := range []string{`not json`, `{}`, `{"case_id":"c","min_confidence":3}`} {
		err := ProcessIdentifyMessage(context.Background(), ident, ch, []byte(body))
		assert.ErrorIs(t, err, ErrInvalidMessage, body)
	}
	assert.Empty(t, ch.published)
}

func TestProcessIdentifyMessageIdentifierError(t *testing.T) {
	boom := errors.New("db down")
	ch := newFakeChannel()
	ident := &fakeIdentifier{err: boom}

	err := ProcessIdentifyMessage(context.Background(), ident, ch, []byte(`{"case_id":"c"}`))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, ch.published)
}

func TestHandleProcessingError(t *testing.T) {
	t.Run("retry", func(t *testing.T) {
		ch := newFakeChannel()
		acker := &fakeAcker{}
		msg := amqp091.Delivery{Acknowledger: acker, Body: []byte("x"), Headers: amqp091.Table{retriesHeader: int32(2)}}

		HandleProcessingError(ch, msg, ChainIdentifyQueue, errors.New("transient"))

		require.Len(t, ch.published, 1)
		assert.Equal(t, ChainIdentifyQueue+"_retry", ch.published[0].key)
		assert.Equal(t, int32(3), ch.published[0].msg.Headers[retriesHeader])
		assert.Equal(t, 1, acker.acks)
	})

	t.Run("exhausted", func(t *testing.T) {
		ch := newFakeChannel()
		acker := &fakeAcker{}
		msg := amqp091.Delivery{Acknowledger: acker, Headers: amqp091.Table{retriesHeader: int32(MaxRetries)}}

		HandleProcessingError(ch, msg, ChainIdentifyQueue, errors.New("transient"))

		require.Len(t, ch.published, 1)
		assert.Equal(t, ChainIdentifyQueue+"_dlq", ch.published[0].key)
	})

	t.Run("invalid goes straight to dlq", func(t *testing.T) {
		ch := newFakeChannel()
		acker := &fakeAcker{}
		msg := amqp091.Delivery{Acknowledger: acker}

		HandleProcessingError(ch, msg, ChainIdentifyQueue, ErrInvalidMessage)

		require.Len(t, ch.published, 1)
		assert.Equal(t, ChainIdentifyQueue+"_dlq", ch.published[0].key)
	})

	t.Run("publish failure requeues", func(t *testing.T) {
		ch := newFakeChannel()
		ch.publishErr = errors.New("closed")
		acker := &fakeAcker{}
		msg := amqp091.Delivery{Acknowledger: acker}

		HandleProcessingError(ch, msg, ChainIdentifyQueue, errors.New("transient"))

		assert.Zero(t, acker.acks)
		assert.Equal(t, 1, acker.nacks)
		assert.True(t, acker.requeued)
	})
}
