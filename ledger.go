package ledgerx

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	DepositDescription        = "Deposit in account"
	WithdrawDescription       = "Withdraw on account"
	DebitTransferDescription  = "Transfer to account %s"
	CreditTransferDescription = "Transfer from account %s"

	// MoneyScale is the number of decimal digits persisted for monetary values.
	MoneyScale      = 2
	DefaultPageSize = 25
)

type MovementType string

const (
	Credit MovementType = "CREDIT"
	Debit  MovementType = "DEBIT"
)

func (t MovementType) Valid() bool {
	return t == Credit || t == Debit
}

func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown movement type %q", s)
	}
	return t, nil
}

// Account is a named balance holder. Version is owned by the store and only
// ever advanced by a successful Save.
type Account struct {
	ID      snowflake.ID    `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Limit   decimal.Decimal `json:"limit"`
	Version int64           `json:"-"`
}

// Available is how much can still be debited without breaking the limit.
func (a *Account) Available() decimal.Decimal {
	return a.Balance.Add(a.Limit)
}

// CanDebit reports whether debiting amount keeps Balance + Limit >= 0.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return !a.Available().Sub(amount).IsNegative()
}

func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// Movement is an immutable ledger entry. Amount is always a non-negative
// magnitude; Type carries the sign.
type Movement struct {
	ID          snowflake.ID    `json:"id"`
	AccountID   snowflake.ID    `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        MovementType    `json:"type"`
	Date        time.Time       `json:"date"`
}

// Signed returns Amount with the sign implied by Type.
func (m Movement) Signed() decimal.Decimal {
	if m.Type == Debit {
		return m.Amount.Neg()
	}
	return m.Amount
}

// Page selects a zero-indexed window of a newest-first result set.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.normalize()
	return n.Number * n.Size
}

func (p Page) Limit() int {
	return p.normalize().Size
}
