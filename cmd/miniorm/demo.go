package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/leftmike/miniorm/engine/sqleng"
	"github.com/leftmike/miniorm/orm"
	"github.com/leftmike/miniorm/sql"
)

func init() {
	miniormCmd.AddCommand(
		&cobra.Command{
			Use:   "demo",
			Short: "Run an account ledger demo against the configured database",
			RunE: func(cmd *cobra.Command, args []string) error {
				return demo(cmd.Context())
			},
		})
}

type account struct {
	orm.Model
	ID     int64   `db:"id,pk,auto"`
	Name   string  `db:"name"`
	Amount int64   `db:"amount"`
	Note   *string `db:"note"`
}

var createAccounts = map[string]string{
	"sqlite": `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    amount INTEGER NOT NULL DEFAULT 0,
    note TEXT
)`,
	"postgres": `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    amount BIGINT NOT NULL DEFAULT 0,
    note TEXT
)`,
}

func demo(ctx context.Context) error {
	ddl, ok := createAccounts[driver]
	if !ok {
		return fmt.Errorf("miniorm: unsupported driver %q", driver)
	}

	eng, err := sqleng.Open(driver, database)
	if err != nil {
		return err
	}
	defer eng.Close()

	if driver == "sqlite" {
		eng.DB().SetMaxOpenConns(1)
	}
	_, err = eng.DB().ExecContext(ctx, ddl)
	if err != nil {
		return err
	}

	tt, err := orm.TableTypeOf("accounts", &account{})
	if err != nil {
		return err
	}
	accounts, err := orm.Register[account](eng, tt)
	if err != nil {
		return err
	}

	err = accounts.Transaction(ctx,
		func(ctx context.Context, tm *orm.Manager) error {
			joint := "joint account"
			for _, acct := range []*account{
				{Name: "checking", Amount: 100},
				{Name: "savings", Amount: 250, Note: &joint},
			} {
				err := tm.InsertRow(ctx, acct)
				if err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}

	_, err = accounts.UpdateWhere(ctx, []sql.Predicate{sql.Eq("name", "checking")},
		sql.Values{"amount": int64(175)})
	if err != nil {
		return err
	}

	recs, err := orm.FetchAll[account](ctx, accounts, nil,
		[]sql.OrderBy{{Field: "id", Order: sql.Asc}}, 0, sql.NoLimit)
	if err != nil {
		return err
	}

	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader(tt.ColumnNames())
	for _, rec := range recs {
		row := make([]string, 0, len(tt.ColumnNames()))
		for _, fld := range orm.Fields(rec) {
			if fld.Value == nil {
				row = append(row, "NULL")
			} else {
				row = append(row, fmt.Sprintf("%v", fld.Value))
			}
		}
		w.Append(row)
	}
	w.Render()

	cnt, err := accounts.CountWhere(ctx, nil, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%d accounts\n", cnt)
	return nil
}
