package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"
)

// DefaultSlowThreshold is the soft time budget of one identification run.
const DefaultSlowThreshold = 30 * time.Second

var (
	ErrMissingCaseID     = errors.New("case id is required")
	ErrInvalidConfidence = errors.New("min confidence must be within [0, 1]")
)

// Identifier turns the scored relations of a case into typed chains and
// stores the ones not seen before.
//
// An Identifier holds no per-run state and may be shared between goroutines;
// each Identify call builds its own graph and traversal.
//
// An Identifier should be created using NewIdentifier.
type Identifier struct {
	relations        store.RelationSource
	chains           store.ChainStore
	maxPathsPerStart int
	slowThreshold    time.Duration
}

// NewIdentifierParams configures a new Identifier.
//
// Relations and Chains are required. MaxPathsPerStart and SlowThreshold fall
// back to DefaultMaxPathsPerStart and DefaultSlowThreshold when zero.
type NewIdentifierParams struct {
	Relations        store.RelationSource
	Chains           store.ChainStore
	MaxPathsPerStart int
	SlowThreshold    time.Duration
}

// NewIdentifier creates an Identifier from params.
func NewIdentifier(params NewIdentifierParams) (*Identifier, error) {
	if params.Relations == nil {
		return nil, errors.New("relation source is nil")
	}
	if params.Chains == nil {
		return nil, errors.New("chain store is nil")
	}

	maxPaths := params.MaxPathsPerStart
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPathsPerStart
	}
	slow := params.SlowThreshold
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}

	return &Identifier{
		relations:        params.Relations,
		chains:           params.Chains,
		maxPathsPerStart: maxPaths,
		slowThreshold:    slow,
	}, nil
}

// IdentifyInput is the invocation input. A nil MinConfidence means
// common.DefaultMinConfidence.
type IdentifyInput struct {
	CaseID        string
	MinConfidence *float64
}

// Threshold resolves the effective confidence threshold of the input.
func (in IdentifyInput) Threshold() (float64, error) {
	if in.MinConfidence == nil {
		return common.DefaultMinConfidence, nil
	}
	v := *in.MinConfidence
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, ErrInvalidConfidence
	}
	return v, nil
}

// Identify loads the relations of the case, enumerates chains, and persists
// the ones the store does not know yet. The returned list reflects the fresh
// computation regardless of what was already stored.
//
// Storage errors are returned wrapped; nothing is retried. When the existence
// lookup or the insert fails, the computed chains are returned alongside the
// error.
func (i *Identifier) Identify(ctx context.Context, input IdentifyInput) ([]common.Chain, error) {
	if input.CaseID == "" {
		return nil, ErrMissingCaseID
	}
	minConfidence, err := input.Threshold()
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	chains, err := i.identify(ctx, input.CaseID, minConfidence)
	elapsed := time.Since(startTime)
	identifyDuration.Observe(elapsed.Seconds())

	if err != nil {
		identifyRuns.WithLabelValues("error").Inc()
		return chains, err
	}
	identifyRuns.WithLabelValues("ok").Inc()

	if elapsed > i.slowThreshold {
		logger.Warn(
			"[Chain] Identification exceeded time budget",
			"case_id", input.CaseID,
			"duration_ms", elapsed.Milliseconds(),
			"budget_ms", i.slowThreshold.Milliseconds(),
		)
	}

	return chains, nil
}

func (i *Identifier) identify(ctx context.Context, caseID string, minConfidence float64) ([]common.Chain, error) {
	relations, err := i.relations.ListRelations(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	if len(relations) == 0 {
		logger.Debug("[Chain] No relations for case", "case_id", caseID)
		return []common.Chain{}, nil
	}

	graph := BuildGraph(relations)
	if graph.Dropped() > 0 {
		relationsDropped.Add(float64(graph.Dropped()))
		logger.Debug("[Chain] Skipped orphaned relations", "case_id", caseID, "dropped", graph.Dropped())
	}

	chains, err := Traverse(ctx, graph, TraverseOptions{
		MinConfidence:    minConfidence,
		MaxDepth:         common.MaxChainDepth,
		MaxPathsPerStart: i.maxPathsPerStart,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range chains {
		chainsIdentified.WithLabelValues(string(c.ChainType)).Inc()
	}

	logger.Debug(
		"[Chain] Traversal finished",
		"case_id", caseID,
		"relations", len(relations),
		"edges", graph.EdgeCount(),
		"chains", len(chains),
	)

	if len(chains) == 0 {
		return chains, nil
	}

	fresh, err := FilterExisting(ctx, i.chains, caseID, chains)
	if err != nil {
		return chains, err
	}

	inserted, err := Persist(ctx, i.chains, caseID, fresh)
	if err != nil {
		return chains, err
	}
	chainsPersisted.Add(float64(inserted))

	logger.Info(
		"[Chain] Chains identified",
		"case_id", caseID,
		"chains", len(chains),
		"new", len(fresh),
		"inserted", inserted,
	)

	return chains, nil
}

// LowConfidenceCount counts chains whose score is below threshold. Callers
// must pass the same threshold they handed to Identify.
func LowConfidenceCount(chains []common.Chain, threshold float64) int {
	n := 0
	for _, c := range chains {
		if c.ConfidenceScore < threshold {
			n++
		}
	}
	return n
}
