package ledgerx

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxAttempts  = 10
	DefaultRetryBackoff = 5 * time.Millisecond
)

// Engine applies deposits, withdrawals and transfers. Every operation runs
// read-validate-mutate-append inside one UnitOfWork; when an account write
// loses its optimistic race the whole unit is thrown away and run again
// against freshly read rows, up to maxAttempts times.
type Engine struct {
	repo        Repository
	node        *snowflake.Node
	pub         Publisher
	log         *zerolog.Logger
	maxAttempts int
	backoff     time.Duration
}

type EngineOption func(*Engine)

func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithRetryBackoff(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

func NewEngine(repo Repository, node *snowflake.Node, log *zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:        repo,
		node:        node,
		pub:         NopPublisher{},
		log:         log,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) CreateAccount(ctx context.Context, name string, limit decimal.Decimal) (*Account, error) {
	acct := &Account{
		ID:    e.node.Generate(),
		Name:  name,
		Limit: limit,
	}
	return e.repo.Accounts().Create(ctx, acct)
}

func (e *Engine) FindAccountByID(ctx context.Context, id snowflake.ID) (*Account, error) {
	return e.repo.Accounts().GetByID(ctx, id)
}

func (e *Engine) GetBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	return e.repo.Accounts().GetBalance(ctx, id)
}

func (e *Engine) FindMovementsByPeriod(ctx context.Context, acctID snowflake.ID, start, end time.Time, page Page) ([]Movement, error) {
	return e.repo.Movements().QueryByPeriod(ctx, acctID, start, end, page)
}

// PeriodScanSize is the page size ScanMovementsByPeriod reads with.
const PeriodScanSize = 100

// ScanMovementsByPeriod returns every movement of the period, newest first.
// Rows appended between pages push older rows onto later pages, so a row
// already seen is dropped rather than returned twice.
func (e *Engine) ScanMovementsByPeriod(ctx context.Context, acctID snowflake.ID, start, end time.Time) ([]Movement, error) {
	var movs []Movement
	seen := make(map[snowflake.ID]struct{})
	for page := 0; ; page++ {
		batch, err := e.repo.Movements().QueryByPeriod(ctx, acctID, start, end, Page{Number: page, Size: PeriodScanSize})
		if err != nil {
			return nil, err
		}
		for _, m := range batch {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			movs = append(movs, m)
		}
		if len(batch) < PeriodScanSize {
			return movs, nil
		}
	}
}

func (e *Engine) FindMovementsByType(ctx context.Context, acctID snowflake.ID, typ MovementType, page Page) ([]Movement, error) {
	return e.repo.Movements().QueryByType(ctx, acctID, typ, page)
}

func (e *Engine) Deposit(ctx context.Context, acctID snowflake.ID, amount decimal.Decimal, at time.Time) (*Movement, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	movs, err := e.atomically(ctx, "deposit", func(ctx context.Context, uow UnitOfWork) ([]Movement, error) {
		acct, err := uow.Accounts().GetByID(ctx, acctID)
		if err != nil {
			return nil, err
		}
		acct.Balance = acct.Balance.Add(amount)
		if _, err = uow.Accounts().Save(ctx, acct); err != nil {
			return nil, err
		}
		m, err := uow.Movements().Append(ctx, e.movement(acctID, DepositDescription, amount, Credit, at))
		if err != nil {
			return nil, err
		}
		return []Movement{*m}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movs[0], nil
}

func (e *Engine) Withdraw(ctx context.Context, acctID snowflake.ID, amount decimal.Decimal, at time.Time) (*Movement, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	movs, err := e.atomically(ctx, "withdraw", func(ctx context.Context, uow UnitOfWork) ([]Movement, error) {
		acct, err := uow.Accounts().GetByID(ctx, acctID)
		if err != nil {
			return nil, err
		}
		if !acct.CanDebit(amount) {
			return nil, ErrInsufficientBalance
		}
		acct.Balance = acct.Balance.Sub(amount)
		if _, err = uow.Accounts().Save(ctx, acct); err != nil {
			return nil, err
		}
		m, err := uow.Movements().Append(ctx, e.movement(acctID, WithdrawDescription, amount, Debit, at))
		if err != nil {
			return nil, err
		}
		return []Movement{*m}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movs[0], nil
}

// Transfer moves amount from debitID to creditID and returns the debit side
// movement. Both accounts are read before either is written.
func (e *Engine) Transfer(ctx context.Context, debitID, creditID snowflake.ID, amount decimal.Decimal, at time.Time) (*Movement, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if debitID == creditID {
		return nil, ErrBadRequest{Fields: map[string]string{"creditAccountId": "must differ from the debit account"}}
	}
	movs, err := e.atomically(ctx, "transfer", func(ctx context.Context, uow UnitOfWork) ([]Movement, error) {
		debit, err := uow.Accounts().GetByID(ctx, debitID)
		if err != nil {
			return nil, err
		}
		credit, err := uow.Accounts().GetByID(ctx, creditID)
		if err != nil {
			return nil, err
		}
		if !debit.CanDebit(amount) {
			return nil, ErrInsufficientBalance
		}
		debit.Balance = debit.Balance.Sub(amount)
		credit.Balance = credit.Balance.Add(amount)

		// lowest id first so two opposite transfers queue on the same row
		first, second := debit, credit
		if cmp.Compare(first.ID, second.ID) > 0 {
			first, second = second, first
		}
		if _, err = uow.Accounts().Save(ctx, first); err != nil {
			return nil, err
		}
		if _, err = uow.Accounts().Save(ctx, second); err != nil {
			return nil, err
		}

		dm, err := uow.Movements().Append(ctx,
			e.movement(debitID, fmt.Sprintf(DebitTransferDescription, creditID), amount, Debit, at))
		if err != nil {
			return nil, err
		}
		cm, err := uow.Movements().Append(ctx,
			e.movement(creditID, fmt.Sprintf(CreditTransferDescription, debitID), amount, Credit, at))
		if err != nil {
			return nil, err
		}
		return []Movement{*dm, *cm}, nil
	})
	if err != nil {
		return nil, err
	}
	return &movs[0], nil
}

func (e *Engine) movement(acctID snowflake.ID, desc string, amount decimal.Decimal, typ MovementType, at time.Time) *Movement {
	return &Movement{
		ID:          e.node.Generate(),
		AccountID:   acctID,
		Description: desc,
		Amount:      amount,
		Type:        typ,
		Date:        at,
	}
}

type unitFunc func(ctx context.Context, uow UnitOfWork) ([]Movement, error)

// atomically runs fn in a fresh unit of work until it commits, fails with
// something other than ErrVersionConflict, or runs out of attempts.
func (e *Engine) atomically(ctx context.Context, op string, fn unitFunc) ([]Movement, error) {
	for attempt := 1; ; attempt++ {
		movs, err := e.attempt(ctx, fn)
		if err == nil {
			e.publish(ctx, op, movs)
			return movs, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}

		engineConflictRetries.WithLabelValues(op).Inc()
		if attempt >= e.maxAttempts {
			engineConflictsExhausted.WithLabelValues(op).Inc()
			e.log.Warn().
				Str("op", op).
				Int("attempts", attempt).
				Msg("giving up after repeated version conflicts")
			return nil, ErrTransientConflict
		}
		e.log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Msg("version conflict, retrying")
		if err = e.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) attempt(ctx context.Context, fn unitFunc) ([]Movement, error) {
	uow, err := e.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			e.log.Err(rbErr).Msg("unit of work rollback failed")
		}
	}()

	movs, err := fn(ctx, uow)
	if err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return movs, nil
}

// wait sleeps a jittered, linearly growing interval before the next attempt.
func (e *Engine) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return nil
	}
	d := e.backoff * time.Duration(attempt)
	d = d/2 + time.Duration(rand.Int63n(int64(d)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) publish(ctx context.Context, op string, movs []Movement) {
	if err := e.pub.Publish(ctx, NewMovementEvents(op, movs)); err != nil {
		eventPublishErrors.Inc()
		e.log.Err(err).
			Str("op", op).
			Int("movements", len(movs)).
			Msg("error publishing movement events")
	}
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrBadRequest{Fields: map[string]string{"amount": "must be greater than zero"}}
	}
	if !hasMoneyScale(amount) {
		return ErrBadRequest{Fields: map[string]string{"amount": "at most 2 decimal places"}}
	}
	return nil
}
