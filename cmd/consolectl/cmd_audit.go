package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"agent-console/internal/audit"
	"agent-console/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

var auditLimit int

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditMigrateCmd, auditRecentCmd)
	auditRecentCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum number of events to list")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Manage the work-order audit trail",
}

var auditMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the audit table if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openAuditDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := audit.NewPostgresRepo(db).Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("Audit schema is up to date.")
		return nil
	},
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent <agent-id>",
	Short: "List the most recent audit events of an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openAuditDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := audit.NewPostgresRepo(db).Recent(cmd.Context(), args[0], auditLimit)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tTYPE\tCALL\tMESSAGE")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Type,
				e.CallID,
				e.Message,
			)
		}
		return w.Flush()
	},
}

func openAuditDB(cmd *cobra.Command) (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.DB.Enabled {
		return nil, errors.New("audit database is disabled (set AUDIT_DB_ENABLED=true)")
	}
	db, err := utils.OpenPostgres(cmd.Context(), "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
