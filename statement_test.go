package ledgerx_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/ledgerx"
)

func TestStatementTotals(t *testing.T) {
	as := assert.New(t)
	st := &ledgerx.Statement{
		Movements: []ledgerx.Movement{
			{Amount: dec("10.50"), Type: ledgerx.Credit},
			{Amount: dec("4.25"), Type: ledgerx.Debit},
			{Amount: dec("0.75"), Type: ledgerx.Debit},
		},
	}
	credits, debits := st.Totals()
	as.True(credits.Equal(dec("10.50")))
	as.True(debits.Equal(dec("5")))
}

func TestStatementRender(t *testing.T) {
	t.Run("empty period still renders", func(tt *testing.T) {
		reqrd := require.New(tt)
		st := &ledgerx.Statement{
			Account:     ledgerx.Account{Name: "empty"},
			Start:       testNow,
			End:         testNow,
			GeneratedAt: testNow,
		}
		buf := new(bytes.Buffer)
		reqrd.NoError(st.Render(buf))
		reqrd.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})
}
