package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrInvalidMessage marks messages that can never succeed. The worker sends
// them straight to the dead-letter queue.
var ErrInvalidMessage = errors.New("invalid message")

// IdentifyMessage is the body of a ChainIdentifyQueue message.
type IdentifyMessage struct {
	CaseID        string   `json:"case_id"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	CorrelationID string   `json:"correlation_id"`
}

// ChainsIdentifiedEvent is published on TopicChainsIdentified.
type ChainsIdentifiedEvent struct {
	CaseID              string `json:"case_id"`
	CorrelationID       string `json:"correlation_id"`
	ChainsIdentified    int    `json:"chains_identified"`
	LowConfidenceChains int    `json:"low_confidence_chains"`
	DurationMs          int64  `json:"duration_ms"`
}

// ChainIdentifier runs one identification.
type ChainIdentifier interface {
	Identify(ctx context.Context, input chain.IdentifyInput) ([]common.Chain, error)
}

// NewIdentifyMessage builds a message with a fresh correlation id.
func NewIdentifyMessage(caseID string, minConfidence *float64) (IdentifyMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return IdentifyMessage{}, fmt.Errorf("failed to generate correlation id: %w", err)
	}
	return IdentifyMessage{
		CaseID:        caseID,
		MinConfidence: minConfidence,
		CorrelationID: id,
	}, nil
}

// EnqueueIdentify publishes msg onto ChainIdentifyQueue.
func EnqueueIdentify(ch Publisher, msg IdentifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, ChainIdentifyQueue, data, nil)
}

func decodeIdentifyMessage(body []byte) (IdentifyMessage, error) {
	var msg IdentifyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.CaseID == "" {
		return msg, fmt.Errorf("%w: missing case_id", ErrInvalidMessage)
	}
	return msg, nil
}

// ProcessIdentifyMessage runs the identification requested by body and
// announces the result on TopicChainsIdentified. A failed announcement is
// logged but does not fail the message, since the chains are already stored.
func ProcessIdentifyMessage(
	ctx context.Context,
	identifier ChainIdentifier,
	ch Publisher,
	body []byte,
) error {
	msg, err := decodeIdentifyMessage(body)
	if err != nil {
		return err
	}

	input := chain.IdentifyInput{CaseID: msg.CaseID, MinConfidence: msg.MinConfidence}
	threshold, err := input.Threshold()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	logger.Info("[Queue] Identifying chains", "case_id", msg.CaseID, "correlation_id", msg.CorrelationID)

	start := time.Now()
	chains, err := identifier.Identify(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to identify chains for case %s: %w", msg.CaseID, err)
	}

	event := ChainsIdentifiedEvent{
		CaseID:              msg.CaseID,
		CorrelationID:       msg.CorrelationID,
		ChainsIdentified:    len(chains),
		LowConfidenceChains: chain.LowConfidenceCount(chains, threshold),
		DurationMs:          time.Since(start).Milliseconds(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := PublishTopic(ch, TopicChainsIdentified, data); err != nil {
		logger.Error("[Queue] Failed to publish chains identified event", "case_id", msg.CaseID, "err", err)
	}

	return nil
}
