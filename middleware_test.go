package ledgerx_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arhyth/ledgerx"
	"github.com/arhyth/ledgerx/mocks"
)

var (
	mwAcctID     = snowflake.ParseInt64(7241722241547767808)
	mwOtherAcct  = snowflake.ParseInt64(7241720446024945664)
	mwBadRequest = &ledgerx.ErrBadRequest{}
)

func TestValidationMWCreateAccount(t *testing.T) {
	cases := []struct {
		name  string
		req   ledgerx.CreateAccountReq
		field string
	}{
		{"blank name", ledgerx.CreateAccountReq{Name: "   ", Limit: dec("0")}, "name"},
		{"negative limit", ledgerx.CreateAccountReq{Name: "neg", Limit: dec("-0.01")}, "limit"},
		{"limit with too many decimals", ledgerx.CreateAccountReq{Name: "frac", Limit: dec("1.001")}, "limit"},
	}
	for _, c := range cases {
		t.Run("rejects "+c.name, func(tt *testing.T) {
			as := assert.New(tt)
			ctrl := gomock.NewController(tt)
			svc := mocks.NewMockService(ctrl)
			v := ledgerx.NewValidationMiddleware()(svc)

			acct, err := v.CreateAccount(context.Background(), c.req)
			as.Nil(acct)
			var br ledgerx.ErrBadRequest
			as.ErrorAs(err, &br)
			as.Contains(br.Fields, c.field)
		})
	}

	t.Run("trims the name and passes valid requests on", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerx.NewValidationMiddleware()(svc)
		svc.EXPECT().
			CreateAccount(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ledgerx.CreateAccountReq) (*ledgerx.Account, error) {
				as.Equal("savings", req.Name)
				return &ledgerx.Account{ID: mwAcctID, Name: req.Name}, nil
			})

		acct, err := v.CreateAccount(context.Background(), ledgerx.CreateAccountReq{Name: " savings ", Limit: dec("10.50")})
		as.NoError(err)
		as.Equal(mwAcctID, acct.ID)
	})
}

func TestValidationMWCharges(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit and withdraw need a positive amount with two decimals", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerx.NewValidationMiddleware()(svc)

		for _, amt := range []string{"0", "-5", "0.001"} {
			_, err := v.Deposit(ctx, ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec(amt)})
			as.ErrorAs(err, mwBadRequest, "deposit %s", amt)
			_, err = v.Withdraw(ctx, ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec(amt)})
			as.ErrorAs(err, mwBadRequest, "withdraw %s", amt)
		}
		_, err := v.Withdraw(ctx, ledgerx.ChargeReq{Amount: dec("1")})
		as.ErrorAs(err, mwBadRequest)
	})

	t.Run("transfer needs a distinct credit account", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerx.NewValidationMiddleware()(svc)

		_, err := v.Transfer(ctx, ledgerx.TransferReq{AcctID: mwAcctID, CreditAcctID: mwAcctID, Amount: dec("1")})
		var br ledgerx.ErrBadRequest
		as.ErrorAs(err, &br)
		as.Contains(br.Fields, "creditAccountId")

		_, err = v.Transfer(ctx, ledgerx.TransferReq{AcctID: mwAcctID, Amount: dec("1")})
		as.ErrorAs(err, mwBadRequest)

		svc.EXPECT().
			Transfer(gomock.Any(), gomock.Any()).
			Return(&ledgerx.Movement{AccountID: mwAcctID, Type: ledgerx.Debit}, nil)
		mov, err := v.Transfer(ctx, ledgerx.TransferReq{AcctID: mwAcctID, CreditAcctID: mwOtherAcct, Amount: dec("1.10")})
		as.NoError(err)
		as.Equal(ledgerx.Debit, mov.Type)
	})
}

func TestValidationMWQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("period must be ordered and pages bounded", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		v := ledgerx.NewValidationMiddleware()(svc)

		_, err := v.MovementsByPeriod(ctx, ledgerx.PeriodReq{AcctID: mwAcctID, Start: testNow, End: testNow.Add(-time.Second)})
		var br ledgerx.ErrBadRequest
		as.ErrorAs(err, &br)
		as.Contains(br.Fields, "end")

		_, err = v.MovementsByPeriod(ctx, ledgerx.PeriodReq{AcctID: mwAcctID, End: testNow})
		as.ErrorAs(err, mwBadRequest)

		_, err = v.MovementsByType(ctx, ledgerx.TypeReq{AcctID: mwAcctID, Type: ledgerx.Credit, Page: ledgerx.Page{Size: ledgerx.MaxPageSize + 1}})
		as.ErrorAs(err, mwBadRequest)

		_, err = v.MovementsByType(ctx, ledgerx.TypeReq{AcctID: mwAcctID, Type: "SIDEWAYS"})
		as.ErrorAs(err, mwBadRequest)

		err = v.Statement(ctx, io.Discard, ledgerx.StatementReq{AcctID: mwAcctID})
		as.ErrorAs(err, mwBadRequest)

		svc.EXPECT().MovementsByPeriod(gomock.Any(), gomock.Any()).Return([]ledgerx.Movement{}, nil)
		movs, err := v.MovementsByPeriod(ctx, ledgerx.PeriodReq{AcctID: mwAcctID, Start: testNow, End: testNow})
		as.NoError(err)
		as.Empty(movs)
	})
}

func TestLimitMW(t *testing.T) {
	t.Run("sheds load once the semaphore is exhausted", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		limits := ledgerx.NewServiceLimits(ledgerx.LimitsConfig{Concurrency: 1, AcquireTimeout: 10 * time.Millisecond})
		l := ledgerx.NewLimitMiddleware(limits)(svc)

		entered := make(chan struct{})
		release := make(chan struct{})
		svc.EXPECT().
			Deposit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, ledgerx.ChargeReq) (*ledgerx.Movement, error) {
				close(entered)
				<-release
				return &ledgerx.Movement{}, nil
			}).
			Times(1)

		done := make(chan error, 1)
		go func() {
			_, err := l.Deposit(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec("1")})
			done <- err
		}()
		<-entered

		_, err := l.Withdraw(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec("1")})
		as.ErrorIs(err, ledgerx.ErrServiceUnavailable)

		close(release)
		reqrd.NoError(<-done)
	})

	t.Run("reads use their own tokens", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		limits := ledgerx.NewServiceLimits(ledgerx.LimitsConfig{Concurrency: 1, AcquireTimeout: 10 * time.Millisecond})
		l := ledgerx.NewLimitMiddleware(limits)(svc)

		bal := dec("3")
		svc.EXPECT().Balance(gomock.Any(), gomock.Any()).Return(&bal, nil)
		reqrd := require.New(tt)
		reqrd.NoError(limits.Mutations.Acquire(context.Background(), 1))
		defer limits.Mutations.Release(1)

		got, err := l.Balance(context.Background(), ledgerx.AccountReq{AcctID: mwAcctID})
		as.NoError(err)
		as.True(got.Equal(bal))
	})
}

func TestCircuitBreakMW(t *testing.T) {
	log := zerolog.Nop()
	cfg := ledgerx.BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}

	t.Run("opens after consecutive server failures", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		cb := ledgerx.NewCircuitBreakMiddleware(ledgerx.NewServiceBreaker(cfg, &log))(svc)
		boom := errors.New("connection refused")

		svc.EXPECT().GetAccount(gomock.Any(), gomock.Any()).Return(nil, boom).Times(2)
		for i := 0; i < 2; i++ {
			_, err := cb.GetAccount(context.Background(), ledgerx.AccountReq{AcctID: mwAcctID})
			as.ErrorIs(err, boom)
		}
		_, err := cb.GetAccount(context.Background(), ledgerx.AccountReq{AcctID: mwAcctID})
		as.ErrorIs(err, ledgerx.ErrServiceUnavailable)
	})

	t.Run("ledger outcomes do not trip the breaker", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		cb := ledgerx.NewCircuitBreakMiddleware(ledgerx.NewServiceBreaker(cfg, &log))(svc)

		svc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(nil, ledgerx.ErrInsufficientBalance).Times(2)
		svc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(nil, ledgerx.ErrNotFound{ID: mwAcctID}).Times(2)
		svc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(nil, ledgerx.ErrTransientConflict).Times(2)
		for i := 0; i < 6; i++ {
			_, err := cb.Withdraw(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec("1")})
			as.NotErrorIs(err, ledgerx.ErrServiceUnavailable)
		}
	})
}

func TestCircuitBreakMWCallerContext(t *testing.T) {
	as := assert.New(t)
	log := zerolog.Nop()
	cfg := ledgerx.BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	}
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	cb := ledgerx.NewCircuitBreakMiddleware(ledgerx.NewServiceBreaker(cfg, &log))(svc)

	svc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, context.Canceled).Times(2)
	svc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("begin transaction: %w", context.DeadlineExceeded)).Times(2)
	svc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(&ledgerx.Movement{}, nil).Times(1)
	for i := 0; i < 4; i++ {
		_, err := cb.Deposit(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec("1")})
		as.NotErrorIs(err, ledgerx.ErrServiceUnavailable)
	}
	mov, err := cb.Deposit(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID, Amount: dec("1")})
	as.NoError(err)
	as.NotNil(mov)
}

func TestChainOrder(t *testing.T) {
	as := assert.New(t)
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	limits := ledgerx.NewServiceLimits(ledgerx.LimitsConfig{Concurrency: 1})
	chained := ledgerx.Chain(svc,
		ledgerx.NewValidationMiddleware(),
		ledgerx.NewLimitMiddleware(limits),
	)

	// validation runs first, so an invalid request never takes a token
	as.NoError(limits.Mutations.Acquire(context.Background(), 1))
	_, err := chained.Deposit(context.Background(), ledgerx.ChargeReq{AcctID: mwAcctID})
	as.ErrorAs(err, mwBadRequest)
	limits.Mutations.Release(1)
}

func TestErrorClass(t *testing.T) {
	as := assert.New(t)
	as.Equal("ok", ledgerx.ErrorClass(nil))
	as.Equal("not_found", ledgerx.ErrorClass(ledgerx.ErrNotFound{}))
	as.Equal("bad_request", ledgerx.ErrorClass(ledgerx.ErrBadRequest{}))
	as.Equal("insufficient_balance", ledgerx.ErrorClass(ledgerx.ErrInsufficientBalance))
	as.Equal("conflict", ledgerx.ErrorClass(ledgerx.ErrTransientConflict))
	as.Equal("unavailable", ledgerx.ErrorClass(ledgerx.ErrServiceUnavailable))
	as.Equal("error", ledgerx.ErrorClass(errors.New("x")))
}
