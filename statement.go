package ledgerx

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const statementDateFmt = "2006-01-02 15:04:05"

// Statement is one account's movements over a period, ready to render.
type Statement struct {
	Account     Account
	Start       time.Time
	End         time.Time
	Movements   []Movement
	GeneratedAt time.Time
}

// Totals sums the statement's credits and debits as magnitudes.
func (st *Statement) Totals() (credits, debits decimal.Decimal) {
	credits, debits = decimal.Zero, decimal.Zero
	for _, m := range st.Movements {
		if m.Type == Credit {
			credits = credits.Add(m.Amount)
		} else {
			debits = debits.Add(m.Amount)
		}
	}
	return credits, debits
}

func (st *Statement) Render(w io.Writer) error {
	rows := slices.Clone(st.Movements)
	slices.SortFunc(rows, func(a, b Movement) int { return newestFirst(b, a) })

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Statement %s", st.Account.ID), true)
	pdf.SetCreationDate(st.GeneratedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Account statement", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Account: %s (%s)", st.Account.Name, st.Account.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s to %s",
		st.Start.UTC().Format(statementDateFmt), st.End.UTC().Format(statementDateFmt)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Current balance: %s  Limit: %s",
		st.Account.Balance.StringFixed(MoneyScale), st.Account.Limit.StringFixed(MoneyScale)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{40, 90, 25, 35}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Date", "Description", "Type", "Amount"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, m := range rows {
		pdf.CellFormat(widths[0], 6, m.Date.UTC().Format(statementDateFmt), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, m.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(m.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, m.Signed().StringFixed(MoneyScale), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	credits, debits := st.Totals()
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Credits: %s  Debits: %s  Net: %s",
		credits.StringFixed(MoneyScale), debits.StringFixed(MoneyScale), credits.Sub(debits).StringFixed(MoneyScale)),
		"", 1, "L", false, 0, "")

	return pdf.Output(w)
}
