package ledgerx

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . Service

type CreateAccountReq struct {
	Name  string          `json:"name"`
	Limit decimal.Decimal `json:"limit"`
}

type AccountReq struct {
	AcctID snowflake.ID
}

type ChargeReq struct {
	Amount decimal.Decimal `json:"amount"`
	AcctID snowflake.ID    `json:"-"`
}

type TransferReq struct {
	AcctID       snowflake.ID    `json:"-"`
	CreditAcctID snowflake.ID    `json:"creditAccountId"`
	Amount       decimal.Decimal `json:"amount"`
}

type PeriodReq struct {
	AcctID snowflake.ID
	Start  time.Time
	End    time.Time
	Page   Page
}

type TypeReq struct {
	AcctID snowflake.ID
	Type   MovementType
	Page   Page
}

type StatementReq struct {
	AcctID snowflake.ID
	Start  time.Time
	End    time.Time
}

// Service is the ledger boundary the HTTP layer talks to.
type Service interface {
	CreateAccount(context.Context, CreateAccountReq) (*Account, error)
	GetAccount(context.Context, AccountReq) (*Account, error)
	Balance(context.Context, AccountReq) (*decimal.Decimal, error)
	Deposit(context.Context, ChargeReq) (*Movement, error)
	Withdraw(context.Context, ChargeReq) (*Movement, error)
	Transfer(context.Context, TransferReq) (*Movement, error)
	MovementsByPeriod(context.Context, PeriodReq) ([]Movement, error)
	MovementsByType(context.Context, TypeReq) ([]Movement, error)
	Statement(context.Context, io.Writer, StatementReq) error
}

type ServiceOption func(*serviceImpl)

// WithClock replaces the wall clock used to stamp movements.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *serviceImpl) {
		s.now = now
	}
}

func NewService(engine *Engine, log *zerolog.Logger, opts ...ServiceOption) *serviceImpl {
	s := &serviceImpl{
		engine: engine,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ Service = (*serviceImpl)(nil)
)

type serviceImpl struct {
	engine *Engine
	log    *zerolog.Logger
	now    func() time.Time
}

// stamp is taken once per operation, before the engine starts its attempts,
// so retries and both sides of a transfer share it.
func (s *serviceImpl) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *serviceImpl) CreateAccount(ctx context.Context, req CreateAccountReq) (*Account, error) {
	acct, err := s.engine.CreateAccount(ctx, req.Name, req.Limit)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Stringer("acctID", acct.ID).
		Msg("account created")
	return acct, nil
}

func (s *serviceImpl) GetAccount(ctx context.Context, req AccountReq) (*Account, error) {
	return s.engine.FindAccountByID(ctx, req.AcctID)
}

func (s *serviceImpl) Balance(ctx context.Context, req AccountReq) (*decimal.Decimal, error) {
	bal, err := s.engine.GetBalance(ctx, req.AcctID)
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

func (s *serviceImpl) Deposit(ctx context.Context, req ChargeReq) (*Movement, error) {
	return s.engine.Deposit(ctx, req.AcctID, req.Amount, s.stamp())
}

func (s *serviceImpl) Withdraw(ctx context.Context, req ChargeReq) (*Movement, error) {
	return s.engine.Withdraw(ctx, req.AcctID, req.Amount, s.stamp())
}

func (s *serviceImpl) Transfer(ctx context.Context, req TransferReq) (*Movement, error) {
	return s.engine.Transfer(ctx, req.AcctID, req.CreditAcctID, req.Amount, s.stamp())
}

func (s *serviceImpl) MovementsByPeriod(ctx context.Context, req PeriodReq) ([]Movement, error) {
	return s.engine.FindMovementsByPeriod(ctx, req.AcctID, req.Start, req.End, req.Page)
}

func (s *serviceImpl) MovementsByType(ctx context.Context, req TypeReq) ([]Movement, error) {
	return s.engine.FindMovementsByType(ctx, req.AcctID, req.Type, req.Page)
}

// Statement renders every movement of the period as a PDF, oldest first.
func (s *serviceImpl) Statement(ctx context.Context, w io.Writer, req StatementReq) error {
	acct, err := s.engine.FindAccountByID(ctx, req.AcctID)
	if err != nil {
		return err
	}

	movs, err := s.engine.ScanMovementsByPeriod(ctx, req.AcctID, req.Start, req.End)
	if err != nil {
		return err
	}

	stmt := &Statement{
		Account:     *acct,
		Start:       req.Start,
		End:         req.End,
		Movements:   movs,
		GeneratedAt: s.stamp(),
	}
	return stmt.Render(w)
}
