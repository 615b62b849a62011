package ledgerx_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/ledgerx"
)

func newTestService(t *testing.T, now func() time.Time) ledgerx.Service {
	t.Helper()
	e, _ := newMemoryEngine(t)
	log := zerolog.Nop()
	return ledgerx.NewService(e, &log, ledgerx.WithClock(now))
}

func TestServiceCreateAccount(t *testing.T) {
	t.Run("new account starts at zero", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newTestService(tt, time.Now)

		acct, err := svc.CreateAccount(context.Background(), ledgerx.CreateAccountReq{Name: "new", Limit: dec("100")})
		reqrd.NoError(err)
		as.NotZero(acct.ID)
		as.True(acct.Balance.IsZero())
		as.True(acct.Limit.Equal(dec("100")))

		got, err := svc.GetAccount(context.Background(), ledgerx.AccountReq{AcctID: acct.ID})
		reqrd.NoError(err)
		as.Equal(acct.ID, got.ID)
		as.Equal("new", got.Name)
	})

	t.Run("unknown account is ErrNotFound", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newTestService(tt, time.Now)
		missing := snowflake.ParseInt64(7241407009730334720)

		acct, err := svc.GetAccount(context.Background(), ledgerx.AccountReq{AcctID: missing})
		as.Nil(acct)
		var nf ledgerx.ErrNotFound
		as.ErrorAs(err, &nf)
		as.Equal(missing, nf.ID)

		bal, err := svc.Balance(context.Background(), ledgerx.AccountReq{AcctID: missing})
		as.Nil(bal)
		as.ErrorAs(err, &ledgerx.ErrNotFound{})
	})
}

func TestServiceStampsMovements(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	ctx := context.Background()
	local := time.FixedZone("UTC+8", 8*60*60)
	now := time.Date(2024, 5, 6, 7, 8, 9, 123456789, local)
	svc := newTestService(t, func() time.Time { return now })

	a, err := svc.CreateAccount(ctx, ledgerx.CreateAccountReq{Name: "a"})
	reqrd.NoError(err)
	b, err := svc.CreateAccount(ctx, ledgerx.CreateAccountReq{Name: "b"})
	reqrd.NoError(err)

	dep, err := svc.Deposit(ctx, ledgerx.ChargeReq{AcctID: a.ID, Amount: dec("50")})
	reqrd.NoError(err)
	as.Equal(time.UTC, dep.Date.Location())
	as.Equal(123456000, dep.Date.Nanosecond())
	as.True(dep.Date.Equal(now.Truncate(time.Microsecond)))

	debit, err := svc.Transfer(ctx, ledgerx.TransferReq{AcctID: a.ID, CreditAcctID: b.ID, Amount: dec("20")})
	reqrd.NoError(err)
	credits, err := svc.MovementsByType(ctx, ledgerx.TypeReq{AcctID: b.ID, Type: ledgerx.Credit})
	reqrd.NoError(err)
	reqrd.Len(credits, 1)
	as.True(debit.Date.Equal(credits[0].Date))

	_, err = svc.Withdraw(ctx, ledgerx.ChargeReq{AcctID: a.ID, Amount: dec("30")})
	reqrd.NoError(err)
	bal, err := svc.Balance(ctx, ledgerx.AccountReq{AcctID: a.ID})
	reqrd.NoError(err)
	as.True(bal.IsZero())

	movs, err := svc.MovementsByPeriod(ctx, ledgerx.PeriodReq{
		AcctID: a.ID,
		Start:  now.Add(-time.Second),
		End:    now.Add(time.Second),
	})
	reqrd.NoError(err)
	as.Len(movs, 3)
}

func TestServiceStatement(t *testing.T) {
	t.Run("renders a PDF of the period", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctx := context.Background()
		svc := newTestService(tt, func() time.Time { return testNow })

		acct, err := svc.CreateAccount(ctx, ledgerx.CreateAccountReq{Name: "statement", Limit: dec("10")})
		reqrd.NoError(err)
		_, err = svc.Deposit(ctx, ledgerx.ChargeReq{AcctID: acct.ID, Amount: dec("15")})
		reqrd.NoError(err)
		_, err = svc.Withdraw(ctx, ledgerx.ChargeReq{AcctID: acct.ID, Amount: dec("20")})
		reqrd.NoError(err)

		buf := new(bytes.Buffer)
		err = svc.Statement(ctx, buf, ledgerx.StatementReq{
			AcctID: acct.ID,
			Start:  testNow.Add(-time.Hour),
			End:    testNow.Add(time.Hour),
		})
		reqrd.NoError(err)
		as.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})

	t.Run("unknown account writes nothing", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newTestService(tt, time.Now)
		buf := new(bytes.Buffer)
		err := svc.Statement(context.Background(), buf, ledgerx.StatementReq{
			AcctID: snowflake.ParseInt64(7241407009730334720),
			Start:  testNow,
			End:    testNow,
		})
		as.ErrorAs(err, &ledgerx.ErrNotFound{})
		as.Zero(buf.Len())
	})
}
