package ledgerx

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . Repository,UnitOfWork,AccountStore,MovementStore

// Repository hands out units of work for ledger mutations and plain
// stores for reads that need no transaction.
type Repository interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Accounts() AccountStore
	Movements() MovementStore
}

// UnitOfWork scopes the reads and writes of one ledger operation attempt.
// Exactly one of Commit or Rollback must end it; Rollback after Commit is a
// no-op so it can always be deferred.
type UnitOfWork interface {
	Accounts() AccountStore
	Movements() MovementStore
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type AccountStore interface {
	Create(ctx context.Context, acct *Account) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error)
	// Save writes acct if its Version still matches the stored one and
	// returns the row with the advanced Version, or ErrVersionConflict.
	Save(ctx context.Context, acct *Account) (*Account, error)
}

type MovementStore interface {
	Append(ctx context.Context, m *Movement) (*Movement, error)
	QueryByPeriod(ctx context.Context, acctID snowflake.ID, start, end time.Time, page Page) ([]Movement, error)
	QueryByType(ctx context.Context, acctID snowflake.ID, typ MovementType, page Page) ([]Movement, error)
}
