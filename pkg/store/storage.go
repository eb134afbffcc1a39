package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate chain")
)

// InsertOptions controls how BulkInsert treats rows that already exist.
type InsertOptions struct {
	// SkipDuplicates turns unique-constraint conflicts into no-ops.
	SkipDuplicates bool
}

// RelationSource loads the scored transaction relations of a case, including
// the projections of both endpoint transactions.
type RelationSource interface {
	ListRelations(ctx context.Context, caseID string) ([]common.Relation, error)
}

// ChainStore persists identified chains. Implementations must perform each
// call as a single round-trip.
type ChainStore interface {
	// FindExisting returns the subset of keys that are already stored for the case.
	FindExisting(ctx context.Context, caseID string, keys []common.ChainKey) ([]common.ChainKey, error)
	// BulkInsert writes records and returns the number of rows actually inserted.
	BulkInsert(ctx context.Context, records []common.ChainRecord, opts InsertOptions) (int64, error)
}

// ChainReader serves the read/delete operations the API layer exposes on
// stored chains. The identification engine itself never uses it.
type ChainReader interface {
	ListChains(ctx context.Context, caseID string, chainType *common.ChainType) ([]common.ChainRecord, error)
	GetChain(ctx context.Context, id string) (*common.ChainRecord, error)
	DeleteChain(ctx context.Context, id string) error
	GetTransactions(ctx context.Context, ids []string) ([]common.Transaction, error)
	ListRelationsBetween(ctx context.Context, caseID string, txIDs []string) ([]common.Relation, error)
}

// ChainStorage bundles everything a full storage backend provides.
type ChainStorage interface {
	RelationSource
	ChainStore
	ChainReader
}
