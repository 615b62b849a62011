package ledgerx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

const (
	MaxPageSize   = 100
	maxNameLength = 255
)

type Middleware func(Service) Service

// Chain wraps svc so that the first middleware is the outermost.
func Chain(svc Service, mws ...Middleware) Service {
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}
	return svc
}

//
// Validation
//

var (
	_ Service = (*validationMiddleware)(nil)
)

type validationMiddleware struct {
	next Service
}

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{
			next: svc,
		}
	}
}

func (v *validationMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		fields["name"] = "name can not be empty"
	case len(name) > maxNameLength:
		fields["name"] = fmt.Sprintf("at most %d characters", maxNameLength)
	}
	if req.Limit.IsNegative() {
		fields["limit"] = "must not be negative"
	} else if !hasMoneyScale(req.Limit) {
		fields["limit"] = "at most 2 decimal places"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	req.Name = name
	return v.next.CreateAccount(ctx, req)
}

func (v *validationMiddleware) GetAccount(ctx context.Context, req AccountReq) (*Account, error) {
	if req.AcctID <= 0 {
		return nil, ErrBadRequest{Fields: map[string]string{"acctID": "invalid"}}
	}
	return v.next.GetAccount(ctx, req)
}

func (v *validationMiddleware) Balance(ctx context.Context, req AccountReq) (*decimal.Decimal, error) {
	if req.AcctID <= 0 {
		return nil, ErrBadRequest{Fields: map[string]string{"acctID": "invalid"}}
	}
	return v.next.Balance(ctx, req)
}

func (v *validationMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Movement, error) {
	fields := map[string]string{}
	validateCharge(fields, req.AcctID, req.Amount)
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.Deposit(ctx, req)
}

func (v *validationMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Movement, error) {
	fields := map[string]string{}
	validateCharge(fields, req.AcctID, req.Amount)
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.Withdraw(ctx, req)
}

func (v *validationMiddleware) Transfer(ctx context.Context, req TransferReq) (*Movement, error) {
	fields := map[string]string{}
	validateCharge(fields, req.AcctID, req.Amount)
	switch {
	case req.CreditAcctID <= 0:
		fields["creditAccountId"] = "missing or invalid"
	case req.CreditAcctID == req.AcctID:
		fields["creditAccountId"] = "must differ from the debit account"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.Transfer(ctx, req)
}

func (v *validationMiddleware) MovementsByPeriod(ctx context.Context, req PeriodReq) ([]Movement, error) {
	fields := map[string]string{}
	if req.AcctID <= 0 {
		fields["acctID"] = "invalid"
	}
	validatePeriod(fields, req.Start, req.End)
	validatePage(fields, req.Page)
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.MovementsByPeriod(ctx, req)
}

func (v *validationMiddleware) MovementsByType(ctx context.Context, req TypeReq) ([]Movement, error) {
	fields := map[string]string{}
	if req.AcctID <= 0 {
		fields["acctID"] = "invalid"
	}
	if !req.Type.Valid() {
		fields["type"] = "must be CREDIT or DEBIT"
	}
	validatePage(fields, req.Page)
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.MovementsByType(ctx, req)
}

func (v *validationMiddleware) Statement(ctx context.Context, w io.Writer, req StatementReq) error {
	fields := map[string]string{}
	if req.AcctID <= 0 {
		fields["acctID"] = "invalid"
	}
	validatePeriod(fields, req.Start, req.End)
	if len(fields) > 0 {
		return ErrBadRequest{Fields: fields}
	}
	return v.next.Statement(ctx, w, req)
}

func validateCharge(fields map[string]string, acctID snowflake.ID, amount decimal.Decimal) {
	if acctID <= 0 {
		fields["acctID"] = "invalid"
	}
	if !amount.IsPositive() {
		fields["amount"] = "must be greater than zero"
	} else if !hasMoneyScale(amount) {
		fields["amount"] = "at most 2 decimal places"
	}
}

func validatePeriod(fields map[string]string, start, end time.Time) {
	if start.IsZero() {
		fields["start"] = "missing"
	}
	if end.IsZero() {
		fields["end"] = "missing"
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		fields["end"] = "must not be before start"
	}
}

func validatePage(fields map[string]string, p Page) {
	if p.Number < 0 {
		fields["page"] = "must not be negative"
	}
	if p.Size < 0 || p.Size > MaxPageSize {
		fields["pageSize"] = fmt.Sprintf("must be between 0 and %d", MaxPageSize)
	}
}

//
// Rate limiting middlewares
//

// limitMiddleware limits the number of in-flight requests to the service by using
// a weighted semaphore, i.e., x/sync/semaphore.Semaphore with an acquisition timeout.
// Requests that cannot get a token within AcquireTimeout fail with ErrServiceUnavailable.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	CreateAccount  *semaphore.Weighted
	Mutations      *semaphore.Weighted
	Reads          *semaphore.Weighted
	Statement      *semaphore.Weighted
	AcquireTimeout time.Duration
}

// NewServiceLimits gives mutations and reads n tokens each; account
// creation and PDF statements get a quarter of that.
func NewServiceLimits(cfg LimitsConfig) *ServiceLimits {
	n := max(cfg.Concurrency, 1)
	small := max(n/4, 1)
	return &ServiceLimits{
		CreateAccount:  semaphore.NewWeighted(small),
		Mutations:      semaphore.NewWeighted(n),
		Reads:          semaphore.NewWeighted(n),
		Statement:      semaphore.NewWeighted(small),
		AcquireTimeout: cfg.AcquireTimeout,
	}
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func limited[T any](ctx context.Context, sem *semaphore.Weighted, timeout time.Duration, call func() (T, error)) (T, error) {
	var zero T
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sem.Acquire(actx, 1); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer sem.Release(1)
	return call()
}

func (l *limitMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	return limited(ctx, l.limits.CreateAccount, l.limits.AcquireTimeout, func() (*Account, error) {
		return l.next.CreateAccount(ctx, req)
	})
}

func (l *limitMiddleware) GetAccount(ctx context.Context, req AccountReq) (*Account, error) {
	return limited(ctx, l.limits.Reads, l.limits.AcquireTimeout, func() (*Account, error) {
		return l.next.GetAccount(ctx, req)
	})
}

func (l *limitMiddleware) Balance(ctx context.Context, req AccountReq) (*decimal.Decimal, error) {
	return limited(ctx, l.limits.Reads, l.limits.AcquireTimeout, func() (*decimal.Decimal, error) {
		return l.next.Balance(ctx, req)
	})
}

func (l *limitMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Movement, error) {
	return limited(ctx, l.limits.Mutations, l.limits.AcquireTimeout, func() (*Movement, error) {
		return l.next.Deposit(ctx, req)
	})
}

func (l *limitMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Movement, error) {
	return limited(ctx, l.limits.Mutations, l.limits.AcquireTimeout, func() (*Movement, error) {
		return l.next.Withdraw(ctx, req)
	})
}

func (l *limitMiddleware) Transfer(ctx context.Context, req TransferReq) (*Movement, error) {
	return limited(ctx, l.limits.Mutations, l.limits.AcquireTimeout, func() (*Movement, error) {
		return l.next.Transfer(ctx, req)
	})
}

func (l *limitMiddleware) MovementsByPeriod(ctx context.Context, req PeriodReq) ([]Movement, error) {
	return limited(ctx, l.limits.Reads, l.limits.AcquireTimeout, func() ([]Movement, error) {
		return l.next.MovementsByPeriod(ctx, req)
	})
}

func (l *limitMiddleware) MovementsByType(ctx context.Context, req TypeReq) ([]Movement, error) {
	return limited(ctx, l.limits.Reads, l.limits.AcquireTimeout, func() ([]Movement, error) {
		return l.next.MovementsByType(ctx, req)
	})
}

func (l *limitMiddleware) Statement(ctx context.Context, w io.Writer, req StatementReq) error {
	_, err := limited(ctx, l.limits.Statement, l.limits.AcquireTimeout, func() (struct{}, error) {
		return struct{}{}, l.next.Statement(ctx, w, req)
	})
	return err
}

type ServiceBreaker struct {
	CreateAccount *gobreaker.TwoStepCircuitBreaker[*Account]
	GetAccount    *gobreaker.TwoStepCircuitBreaker[*Account]
	Balance       *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Deposit       *gobreaker.TwoStepCircuitBreaker[*Movement]
	Withdraw      *gobreaker.TwoStepCircuitBreaker[*Movement]
	Transfer      *gobreaker.TwoStepCircuitBreaker[*Movement]
	Movements     *gobreaker.TwoStepCircuitBreaker[[]Movement]
	Statement     *gobreaker.TwoStepCircuitBreaker[interface{}]
}

func NewServiceBreaker(cfg BreakerConfig, log *zerolog.Logger) *ServiceBreaker {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= max(cfg.ConsecutiveFailures, 1)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Stringer("from", from).
					Stringer("to", to).
					Msg("circuit breaker state changed")
			},
		}
	}
	return &ServiceBreaker{
		CreateAccount: gobreaker.NewTwoStepCircuitBreaker[*Account](settings("create_account")),
		GetAccount:    gobreaker.NewTwoStepCircuitBreaker[*Account](settings("get_account")),
		Balance:       gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](settings("balance")),
		Deposit:       gobreaker.NewTwoStepCircuitBreaker[*Movement](settings("deposit")),
		Withdraw:      gobreaker.NewTwoStepCircuitBreaker[*Movement](settings("withdraw")),
		Transfer:      gobreaker.NewTwoStepCircuitBreaker[*Movement](settings("transfer")),
		Movements:     gobreaker.NewTwoStepCircuitBreaker[[]Movement](settings("movements")),
		Statement:     gobreaker.NewTwoStepCircuitBreaker[interface{}](settings("statement")),
	}
}

// circuitBreakMiddleware is a middleware that implements the circuit breaker pattern.
// It works in conjunction with limitMiddleware to limit the number of in-flight
// requests to the service when the circuit is not in `closed` state, i.e., the service
// is experiencing heavy load and its store keeps failing. Typed ledger outcomes
// (not found, insufficient balance, contention) count as successes; only
// unclassified failures move the breaker.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func guarded[T any](cb *gobreaker.TwoStepCircuitBreaker[T], call func() (T, error)) (T, error) {
	var zero T
	done, err := cb.Allow()
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	res, err := call()
	done(!isFailure(err))
	return res, err
}

// isFailure ignores ledger outcomes and cancelled or expired caller contexts.
func isFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return ErrorClass(err) == "error"
}

func (c *circuitBreakMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	return guarded(c.brkrs.CreateAccount, func() (*Account, error) {
		return c.next.CreateAccount(ctx, req)
	})
}

func (c *circuitBreakMiddleware) GetAccount(ctx context.Context, req AccountReq) (*Account, error) {
	return guarded(c.brkrs.GetAccount, func() (*Account, error) {
		return c.next.GetAccount(ctx, req)
	})
}

func (c *circuitBreakMiddleware) Balance(ctx context.Context, req AccountReq) (*decimal.Decimal, error) {
	return guarded(c.brkrs.Balance, func() (*decimal.Decimal, error) {
		return c.next.Balance(ctx, req)
	})
}

func (c *circuitBreakMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Movement, error) {
	return guarded(c.brkrs.Deposit, func() (*Movement, error) {
		return c.next.Deposit(ctx, req)
	})
}

func (c *circuitBreakMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Movement, error) {
	return guarded(c.brkrs.Withdraw, func() (*Movement, error) {
		return c.next.Withdraw(ctx, req)
	})
}

func (c *circuitBreakMiddleware) Transfer(ctx context.Context, req TransferReq) (*Movement, error) {
	return guarded(c.brkrs.Transfer, func() (*Movement, error) {
		return c.next.Transfer(ctx, req)
	})
}

func (c *circuitBreakMiddleware) MovementsByPeriod(ctx context.Context, req PeriodReq) ([]Movement, error) {
	return guarded(c.brkrs.Movements, func() ([]Movement, error) {
		return c.next.MovementsByPeriod(ctx, req)
	})
}

func (c *circuitBreakMiddleware) MovementsByType(ctx context.Context, req TypeReq) ([]Movement, error) {
	return guarded(c.brkrs.Movements, func() ([]Movement, error) {
		return c.next.MovementsByType(ctx, req)
	})
}

func (c *circuitBreakMiddleware) Statement(ctx context.Context, w io.Writer, req StatementReq) error {
	_, err := guarded(c.brkrs.Statement, func() (interface{}, error) {
		return nil, c.next.Statement(ctx, w, req)
	})
	return err
}

//
// Observability middlewares
//

// ErrorClass buckets err into the outcome label used by logs and metrics.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ErrNotFound{}):
		return "not_found"
	case errors.As(err, &ErrBadRequest{}):
		return "bad_request"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrTransientConflict):
		return "conflict"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	}
	return "error"
}

type instrumentingMiddleware struct {
	next Service
}

var (
	_ Service = (*instrumentingMiddleware)(nil)
)

func NewInstrumentingMiddleware() Middleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{next: next}
	}
}

func observed[T any](method string, call func() (T, error)) (T, error) {
	begin := time.Now()
	res, err := call()
	serviceDuration.WithLabelValues(method).Observe(time.Since(begin).Seconds())
	serviceRequests.WithLabelValues(method, ErrorClass(err)).Inc()
	return res, err
}

func (m *instrumentingMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	return observed("create_account", func() (*Account, error) { return m.next.CreateAccount(ctx, req) })
}

func (m *instrumentingMiddleware) GetAccount(ctx context.Context, req AccountReq) (*Account, error) {
	return observed("get_account", func() (*Account, error) { return m.next.GetAccount(ctx, req) })
}

func (m *instrumentingMiddleware) Balance(ctx context.Context, req AccountReq) (*decimal.Decimal, error) {
	return observed("balance", func() (*decimal.Decimal, error) { return m.next.Balance(ctx, req) })
}

func (m *instrumentingMiddleware) Deposit(ctx context.Context, req ChargeReq) (*Movement, error) {
	return observed("deposit", func() (*Movement, error) { return m.next.Deposit(ctx, req) })
}

func (m *instrumentingMiddleware) Withdraw(ctx context.Context, req ChargeReq) (*Movement, error) {
	return observed("withdraw", func() (*Movement, error) { return m.next.Withdraw(ctx, req) })
}

func (m *instrumentingMiddleware) Transfer(ctx context.Context, req TransferReq) (*Movement, error) {
	return observed("transfer", func() (*Movement, error) { return m.next.Transfer(ctx, req) })
}

func (m *instrumentingMiddleware) MovementsByPeriod(ctx context.Context, req PeriodReq) ([]Movement, error) {
	return observed("movements_by_period", func() ([]Movement, error) { return m.next.MovementsByPeriod(ctx, req) })
}

func (m *instrumentingMiddleware) MovementsByType(ctx context.Context, req TypeReq) ([]Movement, error) {
	return observed("movements_by_type", func() ([]Movement, error) { return m.next.MovementsByType(ctx, req) })
}

func (m *instrumentingMiddleware) Statement(ctx context.Context, w io.Writer, req StatementReq) error {
	_, err := observed("statement", func() (struct{}, error) { return struct{}{}, m.next.Statement(ctx, w, req) })
	return err
}

type loggingMiddleware struct {
	next Service
	log  *zerolog.Logger
}

var (
	_ Service = (*loggingMiddleware)(nil)
)

func NewLoggingMiddleware(log *zerolog.Logger) Middleware {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, log: log}
	}
}

func (l *loggingMiddleware) logged(method string, acctID fmt.Stringer, begin time.Time, err error) {
	var evt *zerolog.Event
	switch ErrorClass(err) {
	case "ok":
		evt = l.log.Debug()
	case "error":
		evt = l.log.Error().Err(err)
	default:
		evt = l.log.Info().Str("outcome", ErrorClass(err)).Err(err)
	}
	evt.Str("method", method).
		Stringer("acctID", acctID).
		Dur("took", time.Since(begin)).
		Msg("service call")
}

func (l *loggingMiddleware) CreateAccount(ctx context.Context, req CreateAccountReq) (acct *Account, err error) {
	defer func(begin time.Time) {
		var id fmt.Stringer = snowflake.ID(0)
		if acct != nil {
			id = acct.ID
		}
		l.logged("create_account", id, begin, err)
	}(time.Now())
	return l.next.CreateAccount(ctx, req)
}

func (l *loggingMiddleware) GetAccount(ctx context.Context, req AccountReq) (acct *Account, err error) {
	defer func(begin time.Time) { l.logged("get_account", req.AcctID, begin, err) }(time.Now())
	return l.next.GetAccount(ctx, req)
}

func (l *loggingMiddleware) Balance(ctx context.Context, req AccountReq) (bal *decimal.Decimal, err error) {
	defer func(begin time.Time) { l.logged("balance", req.AcctID, begin, err) }(time.Now())
	return l.next.Balance(ctx, req)
}

func (l *loggingMiddleware) Deposit(ctx context.Context, req ChargeReq) (m *Movement, err error) {
	defer func(begin time.Time) { l.logged("deposit", req.AcctID, begin, err) }(time.Now())
	return l.next.Deposit(ctx, req)
}

func (l *loggingMiddleware) Withdraw(ctx context.Context, req ChargeReq) (m *Movement, err error) {
	defer func(begin time.Time) { l.logged("withdraw", req.AcctID, begin, err) }(time.Now())
	return l.next.Withdraw(ctx, req)
}

func (l *loggingMiddleware) Transfer(ctx context.Context, req TransferReq) (m *Movement, err error) {
	defer func(begin time.Time) { l.logged("transfer", req.AcctID, begin, err) }(time.Now())
	return l.next.Transfer(ctx, req)
}

func (l *loggingMiddleware) MovementsByPeriod(ctx context.Context, req PeriodReq) (movs []Movement, err error) {
	defer func(begin time.Time) { l.logged("movements_by_period", req.AcctID, begin, err) }(time.Now())
	return l.next.MovementsByPeriod(ctx, req)
}

func (l *loggingMiddleware) MovementsByType(ctx context.Context, req TypeReq) (movs []Movement, err error) {
	defer func(begin time.Time) { l.logged("movements_by_type", req.AcctID, begin, err) }(time.Now())
	return l.next.MovementsByType(ctx, req)
}

func (l *loggingMiddleware) Statement(ctx context.Context, w io.Writer, req StatementReq) (err error) {
	defer func(begin time.Time) { l.logged("statement", req.AcctID, begin, err) }(time.Now())
	return l.next.Statement(ctx, w, req)
}
