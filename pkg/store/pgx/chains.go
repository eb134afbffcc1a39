package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"

	"github.com/google/uuid"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolation = "23505"

// FindExisting returns the keys already stored for the case in one query.
func (s *ChainDBStorage) FindExisting(ctx context.Context, caseID string, keys []common.ChainKey) ([]common.ChainKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	starts, ends, types := keyColumns(keys)
	rows, err := s.conn.Query(ctx, findExistingChainsSQL, caseID, starts, ends, types)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing chains: %w", err)
	}
	defer rows.Close()

	var found []common.ChainKey
	for rows.Next() {
		var k common.ChainKey
		var chainType string
		if err := rows.Scan(&k.StartTxID, &k.EndTxID, &chainType); err != nil {
			return nil, fmt.Errorf("failed to scan chain key: %w", err)
		}
		k.ChainType = common.ChainType(chainType)
		found = append(found, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chain keys: %w", err)
	}

	return found, nil
}

func keyColumns(keys []common.ChainKey) (starts, ends, types []string) {
	starts = make([]string, len(keys))
	ends = make([]string, len(keys))
	types = make([]string, len(keys))
	for i, k := range keys {
		starts[i] = k.StartTxID
		ends[i] = k.EndTxID
		types[i] = string(k.ChainType)
	}
	return starts, ends, types
}

// recordColumns is the column-major form of a record batch as sent to unnest.
type recordColumns struct {
	ids         []string
	caseIDs     []string
	starts      []string
	ends        []string
	types       []string
	depths      []int32
	paths       []string
	amounts     []string
	confidences []float64
	createdAt   []time.Time
}

func newRecordColumns(records []common.ChainRecord) recordColumns {
	n := len(records)
	c := recordColumns{
		ids:         make([]string, n),
		caseIDs:     make([]string, n),
		starts:      make([]string, n),
		ends:        make([]string, n),
		types:       make([]string, n),
		depths:      make([]int32, n),
		paths:       make([]string, n),
		amounts:     make([]string, n),
		confidences: make([]float64, n),
		createdAt:   make([]time.Time, n),
	}
	for i, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		c.ids[i] = id
		c.caseIDs[i] = r.CaseID
		c.starts[i] = r.StartTxID
		c.ends[i] = r.EndTxID
		c.types[i] = string(r.ChainType)
		c.depths[i] = int32(r.ChainDepth)
		c.paths[i] = r.Path
		c.amounts[i] = r.TotalAmount.String()
		c.confidences[i] = r.ConfidenceScore
		c.createdAt[i] = created
	}
	return c
}

func (c recordColumns) args() []any {
	return []any{
		c.ids, c.caseIDs, c.starts, c.ends, c.types,
		c.depths, c.paths, c.amounts, c.confidences, c.createdAt,
	}
}

// BulkInsert writes records with a single INSERT ... SELECT FROM unnest.
// With SkipDuplicates rows hitting the unique key are ignored; otherwise a
// conflict fails the whole statement with store.ErrDuplicate.
func (s *ChainDBStorage) BulkInsert(ctx context.Context, records []common.ChainRecord, opts store.InsertOptions) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	sql := insertChainsSQL
	if opts.SkipDuplicates {
		sql += onConflictSkip
	}

	var inserted int64
	err := store.ChunkRange(len(records), s.chunkSize, func(start, end int) error {
		tag, err := s.conn.Exec(ctx, sql, newRecordColumns(records[start:end]).args()...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("failed to insert chains: %w", store.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert chains: %w", err)
		}
		inserted += tag.RowsAffected()
		return nil
	})

	return inserted, err
}

func scanChainRecord(row pgxv5.Row) (common.ChainRecord, error) {
	var (
		rec       common.ChainRecord
		chainType string
		depth     int32
		amount    pgtype.Numeric
	)
	err := row.Scan(
		&rec.ID,
		&rec.CaseID,
		&rec.StartTxID,
		&rec.EndTxID,
		&chainType,
		&depth,
		&rec.Path,
		&amount,
		&rec.ConfidenceScore,
		&rec.CreatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.ChainType = common.ChainType(chainType)
	rec.ChainDepth = int(depth)
	rec.TotalAmount = numericToDecimalOrZero(amount)
	return rec, nil
}

// ListChains returns the stored chains of a case, deepest first, optionally
// restricted to one chain type.
func (s *ChainDBStorage) ListChains(ctx context.Context, caseID string, chainType *common.ChainType) ([]common.ChainRecord, error) {
	var typeFilter *string
	if chainType != nil {
		v := string(*chainType)
		typeFilter = &v
	}

	rows, err := s.conn.Query(ctx, listChainsSQL, caseID, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query chains: %w", err)
	}
	defer rows.Close()

	records := make([]common.ChainRecord, 0)
	for rows.Next() {
		rec, err := scanChainRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chains: %w", err)
	}

	return records, nil
}

// GetChain loads one chain. Ids that are not UUIDs cannot exist and return
// store.ErrNotFound without touching the database.
func (s *ChainDBStorage) GetChain(ctx context.Context, id string) (*common.ChainRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}

	rec, err := scanChainRecord(s.conn.QueryRow(ctx, getChainSQL, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}

	return &rec, nil
}

func (s *ChainDBStorage) DeleteChain(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrNotFound
	}

	tag, err := s.conn.Exec(ctx, deleteChainSQL, id)
	if err != nil {
		return fmt.Errorf("failed to delete chain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}
