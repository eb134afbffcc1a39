package chain

import (
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Edge is an outgoing, already normalized relation.
type Edge struct {
	Target     string
	Confidence float64
}

// RelationGraph is the directed adjacency structure of one case.
type RelationGraph struct {
	adjacency    map[string][]Edge
	order        []string
	transactions map[string]*common.Transaction
	dropped      int
}

// BuildGraph turns the relations of a case into an adjacency map. Relations
// missing an endpoint id are dropped; confidences are normalized to float64.
func BuildGraph(relations []common.Relation) *RelationGraph {
	g := &RelationGraph{
		adjacency:    make(map[string][]Edge),
		transactions: make(map[string]*common.Transaction),
	}

	for i := range relations {
		rel := &relations[i]
		g.indexTransaction(rel.SourceTxID, rel.SourceTx)
		g.indexTransaction(rel.TargetTxID, rel.TargetTx)

		if rel.SourceTxID == "" || rel.TargetTxID == "" {
			g.dropped++
			continue
		}

		if _, ok := g.adjacency[rel.SourceTxID]; !ok {
			g.order = append(g.order, rel.SourceTxID)
		}
		g.adjacency[rel.SourceTxID] = append(g.adjacency[rel.SourceTxID], Edge{
			Target:     rel.TargetTxID,
			Confidence: NormalizeConfidence(rel.Confidence),
		})
	}

	return g
}

func (g *RelationGraph) indexTransaction(id string, tx *common.Transaction) {
	if id == "" || tx == nil {
		return
	}
	if _, ok := g.transactions[id]; ok {
		return
	}
	g.transactions[id] = tx
}

// Sources returns every node with at least one outgoing edge, in the order
// the relations first mentioned them.
func (g *RelationGraph) Sources() []string {
	return g.order
}

// Neighbors returns the outgoing edges of id.
func (g *RelationGraph) Neighbors(id string) []Edge {
	return g.adjacency[id]
}

// Transaction returns the projection of id, or nil if no relation carried it.
func (g *RelationGraph) Transaction(id string) *common.Transaction {
	return g.transactions[id]
}

// EdgeCount returns the number of kept edges.
func (g *RelationGraph) EdgeCount() int {
	n := 0
	for _, edges := range g.adjacency {
		n += len(edges)
	}
	return n
}

// Dropped returns the number of relations skipped for a missing endpoint.
func (g *RelationGraph) Dropped() int {
	return g.dropped
}

// NormalizeConfidence converts whatever numeric representation the storage
// layer returned into a float64 in [0,1]. Values that cannot be read count
// as 0.
func NormalizeConfidence(v any) float64 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case float32:
		f = float64(c)
	case int:
		f = float64(c)
	case int32:
		f = float64(c)
	case int64:
		f = float64(c)
	case decimal.Decimal:
		f = c.InexactFloat64()
	case *decimal.Decimal:
		if c == nil {
			return 0
		}
		f = c.InexactFloat64()
	case decimal.NullDecimal:
		if !c.Valid {
			return 0
		}
		f = c.Decimal.InexactFloat64()
	case pgtype.Numeric:
		fv, err := c.Float64Value()
		if err != nil || !fv.Valid {
			return 0
		}
		f = fv.Float64
	case pgtype.Float8:
		if !c.Valid {
			return 0
		}
		f = c.Float64
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
