package queue

import (
	"context"

	"github.com/OFFIS-RIT/fundtrace/backend/pkg/chain"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/common"
)

// Locker runs fn while holding an exclusive lease on key.
type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LockedIdentifier serializes identification runs per case across workers.
// A busy case fails with the locker's error, which sends the message through
// the retry queue.
type LockedIdentifier struct {
	Identifier ChainIdentifier
	Locks      Locker
}

func caseLockKey(caseID string) string {
	return "chain_identify:" + caseID
}

func (l LockedIdentifier) Identify(ctx context.Context, input chain.IdentifyInput) ([]common.Chain, error) {
	var chains []common.Chain
	err := l.Locks.WithLease(ctx, caseLockKey(input.CaseID), func(ctx context.Context) error {
		var err error
		chains, err = l.Identifier.Identify(ctx, input)
		return err
	})
	return chains, err
}
