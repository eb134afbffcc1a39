package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/internal/config"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store/memory"
	pgxstore "github.com/OFFIS-RIT/fundtrace/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type caseResult struct {
	CaseID              string `json:"caseId"`
	ChainsIdentified    int    `json:"chainsIdentified"`
	LowConfidenceChains int    `json:"lowConfidenceChains"`
	DurationMs          int64  `json:"durationMs"`
	Error               string `json:"error,omitempty"`
}

type identifyOptions struct {
	minConfidence *float64
	parallel      int
	asJSON        bool
}

func newIdentifyCmd() *cobra.Command {
	var (
		minConfidence float64
		dryRun        bool
		asJSON        bool
		parallel      int
	)

	cmd := &cobra.Command{
		Use:   "identify CASE_ID...",
		Short: "Identify transaction chains for one or more cases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, url)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			s, err := pgxstore.NewChainDBStorageWithConnection(ctx, pool)
			if err != nil {
				return err
			}

			cfg := config.ChainFromEnv()
			params := chain.NewIdentifierParams{
				Relations:        s,
				Chains:           s,
				MaxPathsPerStart: cfg.MaxPathsPerStart,
				SlowThreshold:    cfg.SlowThreshold,
			}
			if dryRun {
				params.Chains = memory.New()
			}
			identifier, err := chain.NewIdentifier(params)
			if err != nil {
				return err
			}

			opts := identifyOptions{parallel: cfg.ParallelCases, asJSON: asJSON}
			if cmd.Flags().Changed("parallel") {
				opts.parallel = parallel
			}
			threshold := cfg.MinConfidence
			if cmd.Flags().Changed("min-confidence") {
				threshold = minConfidence
			}
			opts.minConfidence = &threshold

			return runIdentify(ctx, cmd.OutOrStdout(), identifier, args, opts)
		},
	}

	cmd.Flags().Float64Var(&minConfidence, "min-confidence", common.DefaultMinConfidence, "minimum relation confidence in [0, 1]")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "identify without storing chains")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "number of cases identified concurrently")

	return cmd
}

// runIdentify identifies every case, at most opts.parallel at a time. A failing
// case is reported in its result; the returned error is the first failure.
func runIdentify(
	ctx context.Context,
	out io.Writer,
	identifier *chain.Identifier,
	caseIDs []string,
	opts identifyOptions,
) error {
	input := chain.IdentifyInput{MinConfidence: opts.minConfidence}
	threshold, err := input.Threshold()
	if err != nil {
		return err
	}

	results := make([]caseResult, len(caseIDs))
	var (
		mu       sync.Mutex
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))
	for i, caseID := range caseIDs {
		g.Go(func() error {
			start := time.Now()
			chains, err := identifier.Identify(gctx, chain.IdentifyInput{
				CaseID:        caseID,
				MinConfidence: opts.minConfidence,
			})

			res := caseResult{
				CaseID:              caseID,
				ChainsIdentified:    len(chains),
				LowConfidenceChains: chain.LowConfidenceCount(chains, threshold),
				DurationMs:          time.Since(start).Milliseconds(),
			}
			if err != nil {
				res.Error = err.Error()
				logger.Error("[CLI] Identification failed", "case_id", caseID, "err", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("case %s: %w", caseID, err)
				}
				mu.Unlock()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := printResults(out, results, opts.asJSON); err != nil {
		return err
	}
	return firstErr
}

func printResults(out io.Writer, results []caseResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, r := range results {
		if r.Error != "" {
			if _, err := fmt.Fprintf(out, "%s\tERROR\t%s\n", r.CaseID, r.Error); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(
			out,
			"%s\t%d chains\t%d low confidence\t%dms\n",
			r.CaseID, r.ChainsIdentified, r.LowConfidenceChains, r.DurationMs,
		); err != nil {
			return err
		}
	}
	return nil
}
