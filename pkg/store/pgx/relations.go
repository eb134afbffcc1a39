package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// txColumns holds the scan targets of one transaction projection. All columns
// are nullable because the projection may come from a LEFT JOIN.
type txColumns struct {
	id                       pgtype.Text
	depositAmount            pgtype.Numeric
	withdrawalAmount         pgtype.Numeric
	category                 pgtype.Text
	importantTransactionType pgtype.Text
	transactionDate          pgtype.Timestamptz
	memo                     pgtype.Text
	creditorName             pgtype.Text
}

func (c *txColumns) targets() []any {
	return []any{
		&c.id,
		&c.depositAmount,
		&c.withdrawalAmount,
		&c.category,
		&c.importantTransactionType,
		&c.transactionDate,
		&c.memo,
		&c.creditorName,
	}
}

// transaction returns nil when the joined row did not exist.
func (c *txColumns) transaction() *common.Transaction {
	if !c.id.Valid {
		return nil
	}
	tx := &common.Transaction{
		ID:                       c.id.String,
		DepositAmount:            numericToDecimal(c.depositAmount),
		WithdrawalAmount:         numericToDecimal(c.withdrawalAmount),
		Category:                 c.category.String,
		ImportantTransactionType: c.importantTransactionType.String,
		Memo:                     c.memo.String,
		CreditorName:             c.creditorName.String,
	}
	if c.transactionDate.Valid {
		tx.TransactionDate = c.transactionDate.Time
	}
	return tx
}

// ListRelations returns every relation of the case with both endpoint
// projections. Confidence is handed over as the scanned pgtype.Numeric.
func (s *ChainDBStorage) ListRelations(ctx context.Context, caseID string) ([]common.Relation, error) {
	rows, err := s.conn.Query(ctx, listRelationsSQL, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	return collectRelations(rows)
}

// ListRelationsBetween returns the relations of the case whose endpoints are
// both in txIDs.
func (s *ChainDBStorage) ListRelationsBetween(ctx context.Context, caseID string, txIDs []string) ([]common.Relation, error) {
	if len(txIDs) == 0 {
		return []common.Relation{}, nil
	}
	rows, err := s.conn.Query(ctx, listRelationsBetweenSQL, caseID, txIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations between transactions: %w", err)
	}
	return collectRelations(rows)
}

func collectRelations(rows pgxv5.Rows) ([]common.Relation, error) {
	defer rows.Close()

	relations := make([]common.Relation, 0)
	for rows.Next() {
		var (
			rel        common.Relation
			confidence pgtype.Numeric
			src, dst   txColumns
		)
		targets := []any{&rel.ID, &rel.SourceTxID, &rel.TargetTxID, &confidence}
		targets = append(targets, src.targets()...)
		targets = append(targets, dst.targets()...)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rel.Confidence = confidence
		rel.SourceTx = src.transaction()
		rel.TargetTx = dst.transaction()
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read relations: %w", err)
	}

	return relations, nil
}

// GetTransactions loads the projections of the given ids ordered by date.
// Unknown ids are skipped.
func (s *ChainDBStorage) GetTransactions(ctx context.Context, ids []string) ([]common.Transaction, error) {
	if len(ids) == 0 {
		return []common.Transaction{}, nil
	}

	rows, err := s.conn.Query(ctx, getTransactionsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]common.Transaction, 0, len(ids))
	for rows.Next() {
		var cols txColumns
		if err := rows.Scan(cols.targets()...); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx := cols.transaction(); tx != nil {
			txs = append(txs, *tx)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return txs, nil
}
