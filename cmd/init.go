package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/acled-ingest/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the destination schema and tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		types, err := loadTypes(cfg)
		if err != nil {
			return err
		}
		sink, runLog, err := buildStore(cfg, types, db.Dial(cfg.Database))
		if err != nil {
			return err
		}

		if err := sink.Init(ctx); err != nil {
			return err
		}
		if runLog != nil {
			if err := runLog.Init(ctx); err != nil {
				return err
			}
		}

		fmt.Printf("Initialized %s.%s\n", sink.Schema(), sink.Table())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
