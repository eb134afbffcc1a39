package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"

	"github.com/google/uuid"
)

// ToRecords converts identified chains into storable records for caseID.
func ToRecords(caseID string, chains []common.Chain, now time.Time) []common.ChainRecord {
	records := make([]common.ChainRecord, len(chains))
	for i, c := range chains {
		records[i] = common.ChainRecord{
			ID:              uuid.NewString(),
			CaseID:          caseID,
			StartTxID:       c.StartTxID,
			EndTxID:         c.EndTxID,
			ChainType:       c.ChainType,
			ChainDepth:      c.ChainDepth,
			Path:            common.JoinPath(c.Path),
			TotalAmount:     c.TotalAmount,
			ConfidenceScore: c.ConfidenceScore,
			CreatedAt:       now,
		}
	}
	return records
}

// Persist bulk-inserts chains, letting the store skip rows that collide with
// an existing (case, start, end, type) entry. It returns the inserted count.
func Persist(ctx context.Context, chains store.ChainStore, caseID string, candidates []common.Chain) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	records := ToRecords(caseID, candidates, time.Now().UTC())
	inserted, err := chains.BulkInsert(ctx, records, store.InsertOptions{SkipDuplicates: true})
	if err != nil {
		return 0, fmt.Errorf("failed to insert chains: %w", err)
	}

	return inserted, nil
}
