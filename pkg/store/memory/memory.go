// Package memory provides an in-process ChainStorage used by the CLI's dry
// runs and by tests. It keeps the unique (case, start, end, type) constraint
// of the database table.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"
)

type recordKey struct {
	caseID string
	key    common.ChainKey
}

// Storage is a mutex-guarded in-memory implementation of store.ChainStorage.
type Storage struct {
	mu sync.RWMutex

	relations    map[string][]common.Relation
	transactions map[string]common.Transaction
	records      []common.ChainRecord
	index        map[recordKey]int

	// Err, when set, is returned by every call.
	Err error

	findCalls   int
	insertCalls int
}

var _ store.ChainStorage = (*Storage)(nil)

// New creates an empty Storage.
func New() *Storage {
	return &Storage{
		relations:    make(map[string][]common.Relation),
		transactions: make(map[string]common.Transaction),
		index:        make(map[recordKey]int),
	}
}

// AddRelations registers relations for a case. Endpoint projections are also
// indexed as transactions.
func (s *Storage) AddRelations(caseID string, relations ...common.Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[caseID] = append(s.relations[caseID], relations...)
	for _, r := range relations {
		if r.SourceTx != nil && r.SourceTx.ID != "" {
			s.transactions[r.SourceTx.ID] = *r.SourceTx
		}
		if r.TargetTx != nil && r.TargetTx.ID != "" {
			s.transactions[r.TargetTx.ID] = *r.TargetTx
		}
	}
}

// Seed inserts records directly, bypassing call counters.
func (s *Storage) Seed(records ...common.ChainRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(records)
}

// FindCalls returns the number of FindExisting calls made so far.
func (s *Storage) FindCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findCalls
}

// InsertCalls returns the number of BulkInsert calls made so far.
func (s *Storage) InsertCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insertCalls
}

// Len returns the number of stored chain rows.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) ListRelations(ctx context.Context, caseID string) ([]common.Relation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.relations[caseID]), nil
}

func (s *Storage) FindExisting(ctx context.Context, caseID string, keys []common.ChainKey) ([]common.ChainKey, error) {
	s.mu.Lock()
	s.findCalls++
	s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []common.ChainKey
	for _, k := range keys {
		if _, ok := s.index[recordKey{caseID: caseID, key: k}]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Storage) BulkInsert(ctx context.Context, records []common.ChainRecord, opts store.InsertOptions) (int64, error) {
	s.mu.Lock()
	s.insertCalls++
	s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !opts.SkipDuplicates {
		for _, r := range records {
			if _, ok := s.index[recordKey{caseID: r.CaseID, key: r.Key()}]; ok {
				return 0, store.ErrDuplicate
			}
		}
	}
	return s.insertLocked(records), nil
}

func (s *Storage) insertLocked(records []common.ChainRecord) int64 {
	var n int64
	for _, r := range records {
		k := recordKey{caseID: r.CaseID, key: r.Key()}
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = len(s.records)
		s.records = append(s.records, r)
		n++
	}
	return n
}

func (s *Storage) ListChains(ctx context.Context, caseID string, chainType *common.ChainType) ([]common.ChainRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.ChainRecord, 0)
	for _, r := range s.records {
		if r.CaseID != caseID {
			continue
		}
		if chainType != nil && r.ChainType != *chainType {
			continue
		}
		out = append(out, r)
	}
	// deepest first, then newest, same as the database listing
	slices.SortStableFunc(out, func(a, b common.ChainRecord) int {
		if a.ChainDepth != b.ChainDepth {
			return b.ChainDepth - a.ChainDepth
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Storage) GetChain(ctx context.Context, id string) (*common.ChainRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Storage) DeleteChain(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := slices.IndexFunc(s.records, func(r common.ChainRecord) bool { return r.ID == id })
	if pos < 0 {
		return store.ErrNotFound
	}
	s.records = slices.Delete(s.records, pos, pos+1)
	s.index = make(map[recordKey]int, len(s.records))
	for i, r := range s.records {
		s.index[recordKey{caseID: r.CaseID, key: r.Key()}] = i
	}
	return nil
}

func (s *Storage) GetTransactions(ctx context.Context, ids []string) ([]common.Transaction, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]common.Transaction, 0, len(ids))
	for _, id := range store.DedupeStrings(ids) {
		if tx, ok := s.transactions[id]; ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Storage) ListRelationsBetween(ctx context.Context, caseID string, txIDs []string) ([]common.Relation, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(txIDs))
	for _, id := range txIDs {
		wanted[strings.TrimSpace(id)] = struct{}{}
	}
	out := make([]common.Relation, 0)
	for _, r := range s.relations[caseID] {
		_, src := wanted[r.SourceTxID]
		_, dst := wanted[r.TargetTxID]
		if src && dst {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Storage) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Err
}
