// Package config reads the CHAIN_* settings shared by the server, the worker
// and the CLI.
package config

import (
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"
)

type Chain struct {
	MinConfidence    float64
	MaxPathsPerStart int
	SlowThreshold    time.Duration
	ParallelCases    int
}

func ChainFromEnv() Chain {
	c := Chain{
		MinConfidence:    util.GetEnvFloat("CHAIN_MIN_CONFIDENCE", common.DefaultMinConfidence),
		MaxPathsPerStart: int(util.GetEnvNumeric("CHAIN_MAX_PATHS_PER_START", chain.DefaultMaxPathsPerStart)),
		SlowThreshold:    util.GetEnvDuration("CHAIN_SLOW_THRESHOLD", chain.DefaultSlowThreshold),
		ParallelCases:    int(util.GetEnvNumeric("CHAIN_PARALLEL_CASES", 4)),
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		c.MinConfidence = common.DefaultMinConfidence
	}
	if c.ParallelCases < 1 {
		c.ParallelCases = 1
	}
	return c
}

// NewIdentifier creates the chain engine over s.
func (c Chain) NewIdentifier(s store.ChainStorage) (*chain.Identifier, error) {
	return chain.NewIdentifier(chain.NewIdentifierParams{
		Relations:        s,
		Chains:           s,
		MaxPathsPerStart: c.MaxPathsPerStart,
		SlowThreshold:    c.SlowThreshold,
	})
}
