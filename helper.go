package ledgerx

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
)

//go:embed schema
var schemaFS embed.FS

// LocalHelper applies the schema to a database and seeds accounts. It backs
// cmd/seeder and the postgres integration tests.
type LocalHelper struct {
	Conn *pgx.Conn
	node *snowflake.Node
}

func NewLocalHelper(ctx context.Context, connStr string, node *snowflake.Node) (*LocalHelper, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &LocalHelper{
		Conn: conn,
		node: node,
	}, nil
}

// InitDB creates the tables and returns a func that drops them and closes
// the connection.
func (lh *LocalHelper) InitDB(ctx context.Context) (func(), error) {
	bits, err := schemaFS.ReadFile("schema/init_db.sql")
	if err != nil {
		return nil, err
	}
	if _, err = lh.Conn.Exec(ctx, string(bits)); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return lh.teardownDB(), nil
}

// SeedAccounts inserts accts with a zero balance, generating IDs for those
// without one. Rows whose ID already exists are left untouched.
func (lh *LocalHelper) SeedAccounts(ctx context.Context, accts []SeedAccount) ([]SeedAccount, error) {
	if len(accts) == 0 {
		return nil, nil
	}
	seeded := make([]SeedAccount, len(accts))
	for i, a := range accts {
		if a.ID == 0 {
			a.ID = lh.node.Generate()
		}
		seeded[i] = a
	}

	funcMap := template.FuncMap{
		"quote": func(s string) string {
			return "'" + strings.ReplaceAll(s, "'", "''") + "'"
		},
	}
	bits, err := schemaFS.ReadFile("schema/seed_accounts.tmpl")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("seed_accounts").Funcs(funcMap).Parse(string(bits))
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err = tmpl.Execute(buf, seeded); err != nil {
		return nil, err
	}

	if _, err = lh.Conn.Exec(ctx, buf.String()); err != nil {
		return nil, fmt.Errorf("seed accounts: %w", err)
	}
	return seeded, nil
}

func (lh *LocalHelper) Close(ctx context.Context) error {
	return lh.Conn.Close(ctx)
}

func (lh *LocalHelper) teardownDB() func() {
	return func() {
		ctx := context.Background()
		defer lh.Conn.Close(ctx)

		bits, err := schemaFS.ReadFile("schema/teardown_db.sql")
		if err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup read teardown sql: %s", err.Error())
			return
		}
		if _, err = lh.Conn.Exec(ctx, string(bits)); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
