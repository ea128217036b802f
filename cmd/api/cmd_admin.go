package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/database"
	"github.com/xavierca1/leadbuffer/internal/usecase"
)

var (
	orgID        string
	pruneAge     time.Duration
	pushFilePath string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MemoryMode() {
			return errors.New("DATABASE_URL is required for migrate")
		}
		db, err := database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		fmt.Println(color.New(color.FgGreen).Sprint("✓"), "schema up to date")
		return nil
	},
}

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or reset the search cursor of a namespace",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show <namespace>",
	Short: "Print the stored cursor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		cursor, err := a.cursors.Get(cmd.Context(), orgID, args[0])
		if errors.Is(err, entity.ErrNotFound) {
			fmt.Printf("%s no cursor stored for %s\n", color.New(color.FgYellow).Sprint("!"), args[0])
			return nil
		}
		if err != nil {
			return err
		}
		printCursor(cursor)
		return nil
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset <namespace>",
	Short: "Drop the cursor so the next backfill starts at page 1",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.cursors.Reset(cmd.Context(), orgID, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s cursor reset for %s\n", color.New(color.FgGreen).Sprint("✓"), args[0])
		return nil
	},
}

var idempotencyCmd = &cobra.Command{
	Use:   "idempotency",
	Short: "Maintain stored pull responses",
}

var idempotencyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete idempotency records older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		age := pruneAge
		if age <= 0 {
			age = cfg.IdempotencyTTL
		}
		n, err := a.stores.idempotency.PruneOlderThan(cmd.Context(), time.Now().UTC().Add(-age))
		if err != nil {
			return err
		}
		fmt.Printf("%s removed %d record(s) older than %s\n", color.New(color.FgGreen).Sprint("✓"), n, age)
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Queue a push batch for asynchronous ingestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(pushFilePath)
		if err != nil {
			return fmt.Errorf("read batch: %w", err)
		}
		var batch usecase.PushLeadsInput
		if err := json.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("parse batch: %w", err)
		}
		if orgID != "" {
			batch.OrganizationID = orgID
		}
		if errs := usecase.ValidatePushLeadsInput(batch); len(errs) > 0 {
			for _, e := range errs {
				fmt.Printf("%s %s: %s\n", color.New(color.FgRed).Sprint("✗"), e.Field, e.Message)
			}
			return errors.New("batch rejected")
		}

		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.producer == nil {
			return errors.New("AMQP_URL is required to queue pushes")
		}

		body, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		if err := a.producer.PublishPush(cmd.Context(), body); err != nil {
			return err
		}
		fmt.Printf("%s queued %d lead(s) for %s\n", color.New(color.FgGreen).Sprint("✓"), len(batch.Leads), batch.Namespace)
		return nil
	},
}

func printCursor(c *entity.CursorState) {
	state := color.New(color.FgGreen).Sprint("active")
	if c.Exhausted {
		state = color.New(color.FgYellow).Sprint("exhausted")
	}
	fmt.Printf("namespace:    %s\n", c.Namespace)
	fmt.Printf("state:        %s\n", state)
	fmt.Printf("next page:    %d\n", c.Page)
	fmt.Printf("total pages:  %d\n", c.TotalPages)
	fmt.Printf("filters hash: %s\n", c.FiltersHash)
	fmt.Printf("updated at:   %s\n", c.UpdatedAt.Format(time.RFC3339))
}

func init() {
	for _, c := range []*cobra.Command{cursorShowCmd, cursorResetCmd, pushCmd} {
		c.Flags().StringVar(&orgID, "org", "", "Organization id")
	}
	cursorShowCmd.MarkFlagRequired("org")
	cursorResetCmd.MarkFlagRequired("org")

	idempotencyPruneCmd.Flags().DurationVar(&pruneAge, "older-than", 0, "Age cutoff (defaults to IDEMPOTENCY_TTL)")
	pushCmd.Flags().StringVarP(&pushFilePath, "file", "f", "", "JSON file with {organizationId, namespace, leads}")
	pushCmd.MarkFlagRequired("file")

	cursorCmd.AddCommand(cursorShowCmd, cursorResetCmd)
	idempotencyCmd.AddCommand(idempotencyPruneCmd)
	rootCmd.AddCommand(migrateCmd, cursorCmd, idempotencyCmd, pushCmd)
}
