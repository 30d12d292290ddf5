package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/acled-ingest/internal/config"
	"github.com/sells-group/acled-ingest/internal/db"
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the generated SQL without connecting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeDDL(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(ddlCmd)
}

func writeDDL(w io.Writer, c *config.Config) error {
	types, err := loadTypes(c)
	if err != nil {
		return err
	}
	// The dialer is never called; statements are generated up front.
	sink, runLog, err := buildStore(c, types, db.Dial(c.Database))
	if err != nil {
		return err
	}

	stmts := []string{sink.CreateSchemaSQL(), sink.CreateTableSQL()}
	if runLog != nil {
		stmts = append(stmts, runLog.CreateTableSQL())
	}
	for _, s := range stmts {
		if _, err := fmt.Fprintf(w, "%s;\n\n", s); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "-- insert\n%s;\n", sink.InsertSQL())
	return err
}
