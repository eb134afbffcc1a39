package chain

import (
	"context"
	"slices"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"

	"github.com/shopspring/decimal"
)

// DefaultMaxPathsPerStart bounds how many partial paths a single start node
// may enqueue before its traversal is cut short.
const DefaultMaxPathsPerStart = 10_000

// TraverseOptions configures a traversal run.
type TraverseOptions struct {
	MinConfidence float64
	// MaxDepth caps the number of transactions on a path, so a chain spans
	// at most MaxDepth-1 hops.
	MaxDepth         int
	MaxPathsPerStart int
}

// pathNode is one entry of the path arena. A path is read by following
// parent indices back to the root, so sibling branches share their prefix.
type pathNode struct {
	txID    string
	tag     common.TypeTag
	parent  int
	hops    int
	confSum float64
	amount  decimal.Decimal
}

type pairKey struct {
	start string
	end   string
}

// traversal holds all mutable state of one identification run.
type traversal struct {
	graph *RelationGraph
	opts  TraverseOptions

	visited map[string]struct{}
	emitted map[pairKey]struct{}
	arena   []pathNode
	chains  []common.Chain

	truncatedStarts int
}

// Traverse enumerates bounded-depth paths from every unvisited source node
// and returns one chain per (start, end) pair whose mean edge confidence
// reaches opts.MinConfidence.
//
// A node dequeued during one start's traversal is marked visited for the
// whole run and is not expanded again from a later start.
func Traverse(ctx context.Context, g *RelationGraph, opts TraverseOptions) ([]common.Chain, error) {
	if opts.MaxDepth <= 0 || opts.MaxDepth > common.MaxChainDepth {
		opts.MaxDepth = common.MaxChainDepth
	}
	if opts.MaxPathsPerStart <= 0 {
		opts.MaxPathsPerStart = DefaultMaxPathsPerStart
	}

	t := &traversal{
		graph:   g,
		opts:    opts,
		visited: make(map[string]struct{}),
		emitted: make(map[pairKey]struct{}),
		chains:  []common.Chain{},
	}

	for _, start := range g.Sources() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.isVisited(start) {
			continue
		}
		t.walk(start)
	}

	if t.truncatedStarts > 0 {
		logger.Warn("[Chain] Path ceiling reached", "starts", t.truncatedStarts, "max_paths_per_start", opts.MaxPathsPerStart)
	}

	return t.chains, nil
}

func (t *traversal) isVisited(id string) bool {
	_, ok := t.visited[id]
	return ok
}

// walk runs one breadth-first traversal rooted at start.
func (t *traversal) walk(start string) {
	t.arena = t.arena[:0]
	t.arena = append(t.arena, pathNode{
		txID:   start,
		tag:    ClassifyTransaction(t.graph.Transaction(start)),
		parent: -1,
		amount: decimal.Zero,
	})

	queue := []int{0}
	enqueued := 1
	truncated := false

	for head := 0; head < len(queue); head++ {
		idx := queue[head]
		current := t.arena[idx]

		if t.isVisited(current.txID) {
			continue
		}
		t.visited[current.txID] = struct{}{}

		currentAmount := t.graph.Transaction(current.txID).Amount()

		for _, edge := range t.graph.Neighbors(current.txID) {
			hops := current.hops + 1
			if hops+1 > t.opts.MaxDepth {
				continue
			}
			if t.onPath(idx, edge.Target) {
				continue
			}

			t.arena = append(t.arena, pathNode{
				txID:    edge.Target,
				tag:     ClassifyTransaction(t.graph.Transaction(edge.Target)),
				parent:  idx,
				hops:    hops,
				confSum: current.confSum + edge.Confidence,
				amount:  current.amount.Add(currentAmount),
			})
			childIdx := len(t.arena) - 1

			t.maybeEmit(childIdx)

			if t.isVisited(edge.Target) {
				continue
			}
			if enqueued >= t.opts.MaxPathsPerStart {
				truncated = true
				continue
			}
			queue = append(queue, childIdx)
			enqueued++
		}
	}

	if truncated {
		t.truncatedStarts++
	}
}

// onPath reports whether id already appears on the path ending at idx.
func (t *traversal) onPath(idx int, id string) bool {
	for i := idx; i >= 0; i = t.arena[i].parent {
		if t.arena[i].txID == id {
			return true
		}
	}
	return false
}

func (t *traversal) maybeEmit(idx int) {
	node := t.arena[idx]
	avg := node.confSum / float64(node.hops)
	if avg < t.opts.MinConfidence {
		return
	}

	key := pairKey{start: t.arena[0].txID, end: node.txID}
	if _, ok := t.emitted[key]; ok {
		return
	}
	t.emitted[key] = struct{}{}

	path, types := t.materialize(idx)

	t.chains = append(t.chains, common.Chain{
		StartTxID:       key.start,
		EndTxID:         key.end,
		ChainType:       MatchPattern(types, t.graph.Transaction(key.start)),
		ChainDepth:      node.hops,
		Path:            path,
		TotalAmount:     node.amount,
		ConfidenceScore: avg,
	})
}

// materialize rebuilds the id and type sequences of the path ending at idx.
func (t *traversal) materialize(idx int) ([]string, []common.TypeTag) {
	n := t.arena[idx].hops + 1
	path := make([]string, 0, n)
	types := make([]common.TypeTag, 0, n)
	for i := idx; i >= 0; i = t.arena[i].parent {
		path = append(path, t.arena[i].txID)
		types = append(types, t.arena[i].tag)
	}
	slices.Reverse(path)
	slices.Reverse(types)
	return path, types
}
