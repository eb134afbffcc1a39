// Package view shapes stored chains and relations into the node/edge form the
// case graph UI consumes.
package view

import (
	"fmt"
	"math"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"

	"github.com/shopspring/decimal"
)

const (
	defaultMemo  = "Transaction"
	defaultColor = "#f3f4f6"
)

var chainTypeColors = map[common.ChainType]string{
	common.ChainLoanExecution:   "#dbeafe",
	common.ChainDebtSettlement:  "#fee2e2",
	common.ChainCollateralRight: "#fef3c7",
	common.ChainUpstream:        "#dcfce7",
	common.ChainDownstream:      "#e0f2fe",
}

// ChainTypeColor returns the node background for a chain type.
func ChainTypeColor(t common.ChainType) string {
	if c, ok := chainTypeColors[t]; ok {
		return c
	}
	return defaultColor
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	ChainID         string          `json:"chainId"`
	ChainType       string          `json:"chainType"`
	TransactionID   string          `json:"transactionId"`
	Memo            string          `json:"memo"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate *time.Time      `json:"transactionDate,omitempty"`
	CreditorName    string          `json:"creditorName,omitempty"`
}

type NodeStyle struct {
	Background   string `json:"background"`
	Border       string `json:"border"`
	BorderRadius string `json:"borderRadius"`
	Width        int    `json:"width"`
}

type Node struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Position Position  `json:"position"`
	Data     NodeData  `json:"data"`
	Style    NodeStyle `json:"style"`
}

type EdgeStyle struct {
	StrokeWidth int `json:"strokeWidth"`
}

type Edge struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Label     string    `json:"label"`
	MarkerEnd string    `json:"markerEnd"`
	Style     EdgeStyle `json:"style"`
}

type Stats struct {
	NodeCount  int `json:"nodeCount"`
	EdgeCount  int `json:"edgeCount"`
	ChainCount int `json:"chainCount"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// ChainsToNodes renders one node per chain, described by its start
// transaction. Positions are left at the origin for the client-side layout.
func ChainsToNodes(chains []common.ChainRecord, txs map[string]common.Transaction) []Node {
	nodes := make([]Node, 0, len(chains))
	for _, c := range chains {
		data := NodeData{
			ChainID:       c.ID,
			ChainType:     string(c.ChainType),
			TransactionID: c.StartTxID,
			Memo:          defaultMemo,
			Amount:        decimal.Zero,
		}
		if tx, ok := txs[c.StartTxID]; ok {
			data.Amount = tx.Amount()
			if tx.Memo != "" {
				data.Memo = tx.Memo
			}
			if !tx.TransactionDate.IsZero() {
				date := tx.TransactionDate
				data.TransactionDate = &date
			}
			data.CreditorName = tx.CreditorName
		}

		nodes = append(nodes, Node{
			ID:   c.ID,
			Type: "default",
			Data: data,
			Style: NodeStyle{
				Background:   ChainTypeColor(c.ChainType),
				Border:       "2px solid #000",
				BorderRadius: "8px",
				Width:        220,
			},
		})
	}
	return nodes
}

// RelationsToEdges renders one edge per relation labelled with its
// confidence as a rounded percentage.
func RelationsToEdges(relations []common.Relation) []Edge {
	edges := make([]Edge, 0, len(relations))
	for _, r := range relations {
		pct := int(math.Round(chain.NormalizeConfidence(r.Confidence) * 100))
		edges = append(edges, Edge{
			ID:        r.ID,
			Source:    r.SourceTxID,
			Target:    r.TargetTxID,
			Label:     fmt.Sprintf("%d%%", pct),
			MarkerEnd: "arrowclosed",
			Style:     EdgeStyle{StrokeWidth: 2},
		})
	}
	return edges
}

// BuildGraph assembles nodes, edges and counts.
func BuildGraph(chains []common.ChainRecord, relations []common.Relation, txs map[string]common.Transaction) Graph {
	nodes := ChainsToNodes(chains, txs)
	edges := RelationsToEdges(relations)
	return Graph{
		Nodes: nodes,
		Edges: edges,
		Stats: Stats{
			NodeCount:  len(nodes),
			EdgeCount:  len(edges),
			ChainCount: len(chains),
		},
	}
}

// PathTransactionIDs collects the distinct transaction ids on all chain paths
// in first-seen order.
func PathTransactionIDs(chains []common.ChainRecord) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range chains {
		for _, id := range c.PathIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// IndexTransactions keys transactions by id.
func IndexTransactions(txs []common.Transaction) map[string]common.Transaction {
	out := make(map[string]common.Transaction, len(txs))
	for _, tx := range txs {
		out[tx.ID] = tx
	}
	return out
}

// OrderTransactions returns the transactions in path order, skipping ids that
// were not found.
func OrderTransactions(path []string, txs []common.Transaction) []common.Transaction {
	byID := IndexTransactions(txs)
	out := make([]common.Transaction, 0, len(path))
	for _, id := range path {
		if tx, ok := byID[id]; ok {
			out = append(out, tx)
		}
	}
	return out
}
