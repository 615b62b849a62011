package ledgerx

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MemoryStore is a Repository kept in process memory. It backs the server
// when no database is configured and gives tests a store with the same
// optimistic semantics as Postgres: units of work stage their writes and
// the version of every saved account is checked again at Commit.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[snowflake.ID]Account
	movements []Movement
	node      *snowflake.Node
}

var (
	_ Repository = (*MemoryStore)(nil)
)

func NewMemoryStore(node *snowflake.Node) *MemoryStore {
	return &MemoryStore{
		accounts: make(map[snowflake.ID]Account),
		node:     node,
	}
}

func (s *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	return &memUnitOfWork{
		store:    s,
		staged:   make(map[snowflake.ID]Account),
		expected: make(map[snowflake.ID]int64),
	}, nil
}

func (s *MemoryStore) Accounts() AccountStore {
	return memAccounts{store: s}
}

func (s *MemoryStore) Movements() MovementStore {
	return memMovements{store: s}
}

// SeedAccounts inserts accts with zero balances, generating missing ids.
// Accounts that already exist are left untouched.
func (s *MemoryStore) SeedAccounts(ctx context.Context, accts []SeedAccount) ([]SeedAccount, error) {
	if len(accts) == 0 {
		return nil, nil
	}
	seeded := make([]SeedAccount, len(accts))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range accts {
		if a.ID == 0 {
			a.ID = s.node.Generate()
		}
		seeded[i] = a
		if _, exists := s.accounts[a.ID]; exists {
			continue
		}
		s.accounts[a.ID] = newAccountRow(&Account{ID: a.ID, Name: a.Name, Limit: a.Limit})
	}
	return seeded, nil
}

func (s *MemoryStore) getAccount(id snowflake.ID) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *MemoryStore) committedMovements(acctID snowflake.ID, keep func(Movement) bool) []Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Movement
	for _, m := range s.movements {
		if m.AccountID == acctID && keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func newAccountRow(acct *Account) Account {
	return Account{
		ID:      acct.ID,
		Name:    acct.Name,
		Balance: decimal.Zero.Round(MoneyScale),
		Limit:   acct.Limit.Round(MoneyScale),
		Version: 0,
	}
}

func (s *MemoryStore) prepareMovement(m *Movement) Movement {
	row := *m
	if row.ID == 0 {
		row.ID = s.node.Generate()
	}
	row.Amount = row.Amount.Round(MoneyScale)
	return row
}

// memAccounts works directly against committed state.
type memAccounts struct {
	store *MemoryStore
}

func (ma memAccounts) Create(ctx context.Context, acct *Account) (*Account, error) {
	row := newAccountRow(acct)
	ma.store.mu.Lock()
	defer ma.store.mu.Unlock()
	if _, exists := ma.store.accounts[row.ID]; exists {
		return nil, fmt.Errorf("account %s already exists", row.ID)
	}
	ma.store.accounts[row.ID] = row
	return &row, nil
}

func (ma memAccounts) GetByID(ctx context.Context, id snowflake.ID) (*Account, error) {
	a, ok := ma.store.getAccount(id)
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	return &a, nil
}

func (ma memAccounts) GetBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	a, ok := ma.store.getAccount(id)
	if !ok {
		return decimal.Zero, ErrNotFound{ID: id}
	}
	return a.Balance, nil
}

func (ma memAccounts) Save(ctx context.Context, acct *Account) (*Account, error) {
	ma.store.mu.Lock()
	defer ma.store.mu.Unlock()
	cur, ok := ma.store.accounts[acct.ID]
	if !ok {
		return nil, ErrNotFound{ID: acct.ID}
	}
	if cur.Version != acct.Version {
		return nil, ErrVersionConflict
	}
	cur.Balance = acct.Balance.Round(MoneyScale)
	cur.Version++
	ma.store.accounts[acct.ID] = cur
	return &cur, nil
}

type memMovements struct {
	store *MemoryStore
	uow   *memUnitOfWork
}

func (mm memMovements) Append(ctx context.Context, m *Movement) (*Movement, error) {
	row := mm.store.prepareMovement(m)
	if mm.uow != nil {
		mm.uow.mu.Lock()
		mm.uow.appended = append(mm.uow.appended, row)
		mm.uow.mu.Unlock()
		return &row, nil
	}
	mm.store.mu.Lock()
	mm.store.movements = append(mm.store.movements, row)
	mm.store.mu.Unlock()
	return &row, nil
}

func (mm memMovements) QueryByPeriod(ctx context.Context, acctID snowflake.ID, start, end time.Time, page Page) ([]Movement, error) {
	return mm.query(acctID, page, func(m Movement) bool {
		return !m.Date.Before(start) && !m.Date.After(end)
	}), nil
}

func (mm memMovements) QueryByType(ctx context.Context, acctID snowflake.ID, typ MovementType, page Page) ([]Movement, error) {
	return mm.query(acctID, page, func(m Movement) bool {
		return m.Type == typ
	}), nil
}

func (mm memMovements) query(acctID snowflake.ID, page Page, keep func(Movement) bool) []Movement {
	found := mm.store.committedMovements(acctID, keep)
	if mm.uow != nil {
		mm.uow.mu.Lock()
		for _, m := range mm.uow.appended {
			if m.AccountID == acctID && keep(m) {
				found = append(found, m)
			}
		}
		mm.uow.mu.Unlock()
	}
	slices.SortFunc(found, newestFirst)

	off := page.Offset()
	if off >= len(found) {
		return []Movement{}
	}
	return found[off:min(off+page.Limit(), len(found))]
}

func newestFirst(a, b Movement) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// memUnitOfWork stages account writes and movement appends until Commit.
// expected holds the version each staged account had when first saved in
// this unit; Commit applies nothing unless all of them are still current.
type memUnitOfWork struct {
	store *MemoryStore

	mu       sync.Mutex
	staged   map[snowflake.ID]Account
	created  []Account
	expected map[snowflake.ID]int64
	appended []Movement
	done     bool
}

var (
	_ UnitOfWork = (*memUnitOfWork)(nil)
)

func (u *memUnitOfWork) Accounts() AccountStore {
	return memUoWAccounts{uow: u}
}

func (u *memUnitOfWork) Movements() MovementStore {
	return memMovements{store: u.store, uow: u}
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range u.expected {
		cur, ok := s.accounts[id]
		if !ok || cur.Version != v {
			return ErrVersionConflict
		}
	}
	for _, a := range u.created {
		if _, exists := s.accounts[a.ID]; exists {
			return fmt.Errorf("account %s already exists", a.ID)
		}
	}
	for _, a := range u.created {
		s.accounts[a.ID] = a
	}
	for id, a := range u.staged {
		s.accounts[id] = a
	}
	s.movements = append(s.movements, u.appended...)
	return nil
}

func (u *memUnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.staged = nil
	u.created = nil
	u.appended = nil
	return nil
}

type memUoWAccounts struct {
	uow *memUnitOfWork
}

func (ua memUoWAccounts) Create(ctx context.Context, acct *Account) (*Account, error) {
	row := newAccountRow(acct)
	ua.uow.mu.Lock()
	defer ua.uow.mu.Unlock()
	ua.uow.created = append(ua.uow.created, row)
	return &row, nil
}

func (ua memUoWAccounts) GetByID(ctx context.Context, id snowflake.ID) (*Account, error) {
	ua.uow.mu.Lock()
	a, ok := ua.uow.staged[id]
	ua.uow.mu.Unlock()
	if ok {
		return &a, nil
	}
	a, ok = ua.uow.store.getAccount(id)
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	return &a, nil
}

func (ua memUoWAccounts) GetBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	a, err := ua.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

func (ua memUoWAccounts) Save(ctx context.Context, acct *Account) (*Account, error) {
	u := ua.uow
	u.mu.Lock()
	defer u.mu.Unlock()

	cur, ok := u.staged[acct.ID]
	if !ok {
		committed, exists := u.store.getAccount(acct.ID)
		if !exists {
			return nil, ErrNotFound{ID: acct.ID}
		}
		cur = committed
	}
	if cur.Version != acct.Version {
		return nil, ErrVersionConflict
	}
	if _, seen := u.expected[acct.ID]; !seen {
		u.expected[acct.ID] = cur.Version
	}
	cur.Balance = acct.Balance.Round(MoneyScale)
	cur.Version++
	u.staged[acct.ID] = cur
	return &cur, nil
}
