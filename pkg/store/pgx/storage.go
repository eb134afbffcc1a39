package pgx

import (
	"context"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// ChainDBStorage implements store.ChainStorage on PostgreSQL. Relations and
// transactions are read from the tables owned by the ingestion side; only
// transaction_chains is written.
//
// Every method issues exactly one statement, so a *pgxpool.Pool, a single
// *pgx.Conn and an open pgx.Tx are all valid connections.
type ChainDBStorage struct {
	conn      pgxIConn
	chunkSize int
}

var _ store.ChainStorage = (*ChainDBStorage)(nil)

type ChainDBStorageOption func(*ChainDBStorage)

// WithInsertChunkSize splits BulkInsert into statements of at most n rows.
// Zero, the default, sends every record in one statement.
func WithInsertChunkSize(n int) ChainDBStorageOption {
	return func(s *ChainDBStorage) {
		s.chunkSize = n
	}
}

// NewChainDBStorageWithConnection creates a new ChainDBStorage using an
// existing database connection.
func NewChainDBStorageWithConnection(
	ctx context.Context,
	conn pgxIConn,
	opts ...ChainDBStorageOption,
) (*ChainDBStorage, error) {
	s := &ChainDBStorage{
		conn: conn,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// WithTx runs fn against a storage bound to a fresh transaction and commits
// when fn succeeds.
func (s *ChainDBStorage) WithTx(ctx context.Context, fn func(tx *ChainDBStorage) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&ChainDBStorage{conn: tx, chunkSize: s.chunkSize}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
