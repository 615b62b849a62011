package ledgerx_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/ledgerx"
)

func newStoreWithAccount(t *testing.T, limit string) (*ledgerx.MemoryStore, *ledgerx.Account) {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	store := ledgerx.NewMemoryStore(node)
	acct, err := store.Accounts().Create(context.Background(), &ledgerx.Account{
		ID:      node.Generate(),
		Name:    "mem",
		Balance: dec("999"),
		Limit:   dec(limit),
		Version: 42,
	})
	require.NoError(t, err)
	return store, acct
}

func TestMemoryStoreAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("create forces a zero balance and version", func(tt *testing.T) {
		as := assert.New(tt)
		_, acct := newStoreWithAccount(tt, "12.345")
		as.True(acct.Balance.IsZero())
		as.Equal(int64(0), acct.Version)
		as.True(acct.Limit.Equal(dec("12.35")), "limit %s", acct.Limit)
	})

	t.Run("create rejects a duplicate id", func(tt *testing.T) {
		as := assert.New(tt)
		store, acct := newStoreWithAccount(tt, "0")
		_, err := store.Accounts().Create(ctx, acct)
		as.Error(err)
	})

	t.Run("save advances the version and rejects stale writes", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, acct := newStoreWithAccount(tt, "0")

		stale := *acct
		acct.Balance = dec("5")
		saved, err := store.Accounts().Save(ctx, acct)
		reqrd.NoError(err)
		as.Equal(int64(1), saved.Version)

		stale.Balance = dec("7")
		_, err = store.Accounts().Save(ctx, &stale)
		as.ErrorIs(err, ledgerx.ErrVersionConflict)

		bal, err := store.Accounts().GetBalance(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(bal.Equal(dec("5")))
	})

	t.Run("missing account is ErrNotFound", func(tt *testing.T) {
		as := assert.New(tt)
		store, _ := newStoreWithAccount(tt, "0")
		_, err := store.Accounts().GetByID(ctx, snowflake.ID(1))
		as.ErrorAs(err, &ledgerx.ErrNotFound{})
		_, err = store.Accounts().GetBalance(ctx, snowflake.ID(1))
		as.ErrorAs(err, &ledgerx.ErrNotFound{})
	})
}

func TestMemoryUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing is visible before commit", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, acct := newStoreWithAccount(tt, "0")

		uow, err := store.Begin(ctx)
		reqrd.NoError(err)
		a, err := uow.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)
		a.Balance = dec("10")
		_, err = uow.Accounts().Save(ctx, a)
		reqrd.NoError(err)
		_, err = uow.Movements().Append(ctx, &ledgerx.Movement{AccountID: acct.ID, Amount: dec("10"), Type: ledgerx.Credit, Date: testNow})
		reqrd.NoError(err)

		inside, err := uow.Accounts().GetBalance(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(inside.Equal(dec("10")))
		outside, err := store.Accounts().GetBalance(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(outside.IsZero())

		reqrd.NoError(uow.Commit(ctx))
		reqrd.NoError(uow.Rollback(ctx))

		committed, err := store.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(committed.Balance.Equal(dec("10")))
		as.Equal(int64(1), committed.Version)
		movs, err := store.Movements().QueryByType(ctx, acct.ID, ledgerx.Credit, ledgerx.Page{})
		reqrd.NoError(err)
		reqrd.Len(movs, 1)
		as.NotZero(movs[0].ID)
	})

	t.Run("rollback discards staged writes", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, acct := newStoreWithAccount(tt, "0")

		uow, err := store.Begin(ctx)
		reqrd.NoError(err)
		a, err := uow.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)
		a.Balance = dec("3")
		_, err = uow.Accounts().Save(ctx, a)
		reqrd.NoError(err)
		_, err = uow.Movements().Append(ctx, &ledgerx.Movement{AccountID: acct.ID, Amount: dec("3"), Type: ledgerx.Credit, Date: testNow})
		reqrd.NoError(err)
		reqrd.NoError(uow.Rollback(ctx))

		cur, err := store.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(cur.Balance.IsZero())
		as.Equal(int64(0), cur.Version)
		movs, err := store.Movements().QueryByType(ctx, acct.ID, ledgerx.Credit, ledgerx.Page{})
		reqrd.NoError(err)
		as.Empty(movs)
	})

	t.Run("second of two racing units fails at commit", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, acct := newStoreWithAccount(tt, "0")

		first, err := store.Begin(ctx)
		reqrd.NoError(err)
		second, err := store.Begin(ctx)
		reqrd.NoError(err)

		a1, err := first.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)
		a2, err := second.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)

		a1.Balance = dec("1")
		_, err = first.Accounts().Save(ctx, a1)
		reqrd.NoError(err)
		a2.Balance = dec("2")
		_, err = second.Accounts().Save(ctx, a2)
		reqrd.NoError(err)
		_, err = second.Movements().Append(ctx, &ledgerx.Movement{AccountID: acct.ID, Amount: dec("2"), Type: ledgerx.Credit, Date: testNow})
		reqrd.NoError(err)

		reqrd.NoError(first.Commit(ctx))
		as.ErrorIs(second.Commit(ctx), ledgerx.ErrVersionConflict)
		reqrd.NoError(second.Rollback(ctx))

		bal, err := store.Accounts().GetBalance(ctx, acct.ID)
		reqrd.NoError(err)
		as.True(bal.Equal(dec("1")))
		movs, err := store.Movements().QueryByType(ctx, acct.ID, ledgerx.Credit, ledgerx.Page{})
		reqrd.NoError(err)
		as.Empty(movs, "losing unit must not leak its movements")
	})

	t.Run("stale save inside a unit conflicts immediately", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, acct := newStoreWithAccount(tt, "0")

		uow, err := store.Begin(ctx)
		reqrd.NoError(err)
		a, err := uow.Accounts().GetByID(ctx, acct.ID)
		reqrd.NoError(err)

		bumped := *acct
		bumped.Balance = dec("4")
		_, err = store.Accounts().Save(ctx, &bumped)
		reqrd.NoError(err)

		a.Balance = dec("8")
		_, err = uow.Accounts().Save(ctx, a)
		as.ErrorIs(err, ledgerx.ErrVersionConflict)
	})
}

func TestMemoryStoreSeedAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds zero balances and keeps existing accounts", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		store, existing := newStoreWithAccount(tt, "5")

		seeded, err := store.SeedAccounts(ctx, []ledgerx.SeedAccount{
			{Name: "Operations", Limit: dec("0")},
			{ID: existing.ID, Name: "renamed", Limit: dec("100")},
		})
		reqrd.NoError(err)
		reqrd.Len(seeded, 2)
		as.NotZero(seeded[0].ID)
		as.Equal(existing.ID, seeded[1].ID)

		ops, err := store.Accounts().GetByID(ctx, seeded[0].ID)
		reqrd.NoError(err)
		as.Equal("Operations", ops.Name)
		as.True(ops.Balance.IsZero())

		kept, err := store.Accounts().GetByID(ctx, existing.ID)
		reqrd.NoError(err)
		as.Equal("mem", kept.Name)
		as.True(kept.Limit.Equal(dec("5")))
	})

	t.Run("nothing to seed", func(tt *testing.T) {
		as := assert.New(tt)
		store, _ := newStoreWithAccount(tt, "0")
		seeded, err := store.SeedAccounts(ctx, nil)
		as.NoError(err)
		as.Empty(seeded)
	})
}
