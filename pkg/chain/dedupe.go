package chain

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"
)

// FilterExisting drops candidates whose (start, end, type) triple is already
// stored for the case. The store is asked once for all candidates.
func FilterExisting(
	ctx context.Context,
	chains store.ChainStore,
	caseID string,
	candidates []common.Chain,
) ([]common.Chain, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	keys := make([]common.ChainKey, len(candidates))
	for i, c := range candidates {
		keys[i] = c.Key()
	}

	existing, err := chains.FindExisting(ctx, caseID, store.DedupeKeys(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing chains: %w", err)
	}
	if len(existing) == 0 {
		return candidates, nil
	}

	existingSet := make(map[common.ChainKey]struct{}, len(existing))
	for _, k := range existing {
		existingSet[k] = struct{}{}
	}

	fresh := make([]common.Chain, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := existingSet[c.Key()]; ok {
			continue
		}
		fresh = append(fresh, c)
	}

	return fresh, nil
}
