package ledgerx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	pgInsertAcctSQL = `
		INSERT INTO accounts (id, name, balance, balance_limit, version)
		VALUES ($1, $2, 0, $3, 0)
		RETURNING balance, balance_limit, version;
	`

	pgSelectAcctSQL = `
		SELECT name, balance, balance_limit, version
		FROM accounts
		WHERE id = $1;
	`

	pgSelectBalanceSQL = `
		SELECT balance
		FROM accounts
		WHERE id = $1;
	`

	// compare-and-swap on version; no row back means someone else won
	pgUpdateAcctSQL = `
		UPDATE accounts
		SET balance = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING balance, version;
	`

	pgAcctExistsSQL = `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);
	`

	pgInsertMovementSQL = `
		INSERT INTO movements (id, account_id, description, amount, typ, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING amount;
	`

	pgMovementsByPeriodSQL = `
		SELECT id, account_id, description, amount, typ, occurred_at
		FROM movements
		WHERE account_id = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at DESC, id DESC
		LIMIT $4 OFFSET $5;
	`

	pgMovementsByTypeSQL = `
		SELECT id, account_id, description, amount, typ, occurred_at
		FROM movements
		WHERE account_id = $1 AND typ = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3 OFFSET $4;
	`
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// querier is what both the pool and an open transaction offer.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresEndpoint struct {
	pool *pgxpool.Pool
	node *snowflake.Node
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(ctx context.Context, dbcfg DatabaseConfig, node *snowflake.Node, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(dbcfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if dbcfg.MaxConns > 0 {
		cfg.MaxConns = dbcfg.MaxConns
	}
	if dbcfg.MinConns > 0 {
		cfg.MinConns = dbcfg.MinConns
	}
	if dbcfg.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = dbcfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		node: node,
		log:  log,
	}
	return endpt, nil
}

func (pg *PostgresEndpoint) Close() {
	pg.pool.Close()
}

func (pg *PostgresEndpoint) Ping(ctx context.Context) error {
	return pg.pool.Ping(ctx)
}

func (pg *PostgresEndpoint) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := pg.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgUnitOfWork{tx: tx, node: pg.node}, nil
}

func (pg *PostgresEndpoint) Accounts() AccountStore {
	return pgAccounts{q: pg.pool}
}

func (pg *PostgresEndpoint) Movements() MovementStore {
	return pgMovements{q: pg.pool, node: pg.node}
}

type pgUnitOfWork struct {
	tx   pgx.Tx
	node *snowflake.Node
}

func (u *pgUnitOfWork) Accounts() AccountStore {
	return pgAccounts{q: u.tx}
}

func (u *pgUnitOfWork) Movements() MovementStore {
	return pgMovements{q: u.tx, node: u.node}
}

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", asConflict(err))
	}
	return nil
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// asConflict folds the Postgres concurrency aborts into ErrVersionConflict
// so they are retried like a lost compare-and-swap.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}

type pgAccounts struct {
	q querier
}

func (pa pgAccounts) Create(ctx context.Context, acct *Account) (*Account, error) {
	row := pa.q.QueryRow(ctx, pgInsertAcctSQL, acct.ID.Int64(), acct.Name, acct.Limit)
	created := &Account{ID: acct.ID, Name: acct.Name}
	if err := row.Scan(&created.Balance, &created.Limit, &created.Version); err != nil {
		return nil, fmt.Errorf("create account: %w", asConflict(err))
	}
	return created, nil
}

func (pa pgAccounts) GetByID(ctx context.Context, id snowflake.ID) (*Account, error) {
	acct := &Account{ID: id}
	row := pa.q.QueryRow(ctx, pgSelectAcctSQL, id.Int64())
	if err := row.Scan(&acct.Name, &acct.Balance, &acct.Limit, &acct.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, fmt.Errorf("get account: %w", asConflict(err))
	}
	return acct, nil
}

func (pa pgAccounts) GetBalance(ctx context.Context, id snowflake.ID) (decimal.Decimal, error) {
	var bal decimal.Decimal
	if err := pa.q.QueryRow(ctx, pgSelectBalanceSQL, id.Int64()).Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound{ID: id}
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

func (pa pgAccounts) Save(ctx context.Context, acct *Account) (*Account, error) {
	saved := *acct
	row := pa.q.QueryRow(ctx, pgUpdateAcctSQL, acct.Balance, acct.ID.Int64(), acct.Version)
	err := row.Scan(&saved.Balance, &saved.Version)
	if err == nil {
		return &saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("save account: %w", asConflict(err))
	}

	// zero rows: tell a stale version apart from a missing account
	var exists bool
	if err = pa.q.QueryRow(ctx, pgAcctExistsSQL, acct.ID.Int64()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("save account: %w", asConflict(err))
	}
	if !exists {
		return nil, ErrNotFound{ID: acct.ID}
	}
	return nil, ErrVersionConflict
}

type pgMovements struct {
	q    querier
	node *snowflake.Node
}

func (pm pgMovements) Append(ctx context.Context, m *Movement) (*Movement, error) {
	row := *m
	if row.ID == 0 {
		row.ID = pm.node.Generate()
	}
	err := pm.q.QueryRow(ctx, pgInsertMovementSQL,
		row.ID.Int64(), row.AccountID.Int64(), row.Description, row.Amount, string(row.Type), row.Date,
	).Scan(&row.Amount)
	if err != nil {
		return nil, fmt.Errorf("append movement: %w", asConflict(err))
	}
	return &row, nil
}

func (pm pgMovements) QueryByPeriod(ctx context.Context, acctID snowflake.ID, start, end time.Time, page Page) ([]Movement, error) {
	rows, err := pm.q.Query(ctx, pgMovementsByPeriodSQL, acctID.Int64(), start, end, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("query movements by period: %w", err)
	}
	return scanMovements(rows)
}

func (pm pgMovements) QueryByType(ctx context.Context, acctID snowflake.ID, typ MovementType, page Page) ([]Movement, error) {
	rows, err := pm.q.Query(ctx, pgMovementsByTypeSQL, acctID.Int64(), string(typ), page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("query movements by type: %w", err)
	}
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	movs := []Movement{}
	for rows.Next() {
		var (
			id, acctID int64
			typ        string
			m          Movement
		)
		if err := rows.Scan(&id, &acctID, &m.Description, &m.Amount, &typ, &m.Date); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.ID = snowflake.ParseInt64(id)
		m.AccountID = snowflake.ParseInt64(acctID)
		m.Type = MovementType(typ)
		m.Date = m.Date.UTC()
		movs = append(movs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read movements: %w", err)
	}
	return movs, nil
}
