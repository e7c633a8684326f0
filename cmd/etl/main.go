// Package main provides the CLI entry point for etl, the multi-tenant
// warehouse ingestion engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.datawiz.dev/etl/config"
	"go.datawiz.dev/etl/ddl"
	"go.datawiz.dev/etl/load"
	"go.datawiz.dev/etl/log"
	"go.datawiz.dev/etl/pipeline"
	"go.datawiz.dev/etl/profiler"
	"go.datawiz.dev/etl/version"
)

func main() {
	logCfg := log.NewConfig()
	prof := profiler.New()

	var configRoot string

	var logger *slog.Logger

	rootCmd := &cobra.Command{
		Use:   "etl",
		Short: "Multi-tenant warehouse ingestion",
		Long: `etl ingests tenant extracts from object storage, converts them to
columnar files, applies declarative schema mappings, and bulk loads the
result into the tenant's analytical database.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}

			logger = slog.New(handler)

			return prof.Start()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configRoot, "config-root", "config",
		"root directory of the tenant configuration tree")
	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	prof.RegisterFlags(rootCmd.PersistentFlags())

	completionErr := logCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", completionErr)
	}

	rootCmd.AddCommand(
		newRunCmd(&configRoot, &logger),
		newTenantsCmd(&configRoot),
		newSeedCmd(&configRoot, &logger),
		newDDLCmd(&configRoot, &logger),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	stopErr := prof.Stop()
	if stopErr != nil {
		fmt.Fprintf(os.Stderr, "stop profiler: %v\n", stopErr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRunCmd(configRoot *string, logger **slog.Logger) *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run a named pipeline job",
		Long:      "Available jobs: " + strings.Join(pipeline.JobNames(), ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: pipeline.JobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := config.NewResolver(*configRoot)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(resolver, *logger)

			outcome, err := runner.Run(cmd.Context(), args[0], tenants)
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), outcome)

			if outcome.Failed() {
				return fmt.Errorf("job %s finished with failures", args[0])
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tenants, "tenant", nil,
		"tenant slug or ID to run (repeatable; default all enabled)")

	return cmd
}

func newTenantsCmd(configRoot *string) *cobra.Command {
	var includeDisabled bool

	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "List registered tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := config.NewResolver(*configRoot)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tPROVIDER\tDATABASE\tPRIORITY\tENABLED")

			for _, t := range resolver.ListTenants(includeDisabled) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
					t.TenantSlug, t.TenantName, t.Provider, t.DatabaseName,
					t.SchedulePriority, t.Enabled)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&includeDisabled, "all", false, "include disabled tenants")

	return cmd
}

func newSeedCmd(configRoot *string, logger **slog.Logger) *cobra.Command {
	var tenants []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference seed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := config.NewResolver(*configRoot)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(resolver, *logger)

			outcome, err := runner.Run(cmd.Context(), "seed_load", tenants)
			if err != nil {
				return err
			}

			if outcome.Failed() {
				return fmt.Errorf("seed load finished with failures")
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tenants, "tenant", nil,
		"tenant slug or ID to seed (repeatable; default all enabled)")

	return cmd
}

func newDDLCmd(configRoot *string, logger **slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Manage destination schema objects",
	}

	forTenant := func(cmd *cobra.Command, slug string, fn func(context.Context, *ddl.Applier) error) error {
		resolver, err := config.NewResolver(*configRoot)
		if err != nil {
			return err
		}

		tenant, err := resolver.Get(slug)
		if err != nil {
			return err
		}

		db, err := load.Connect(tenant)
		if err != nil {
			return err
		}
		defer db.Close()

		return fn(cmd.Context(), ddl.NewApplier(db, tenant, log.ForTenant(*logger, tenant.Slug)))
	}

	applyCmd := &cobra.Command{
		Use:   "apply <tenant>",
		Short: "Create declared tables, views, and materialized views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forTenant(cmd, args[0], func(ctx context.Context, a *ddl.Applier) error {
				return a.Apply(ctx)
			})
		},
	}

	dropCmd := &cobra.Command{
		Use:   "drop <tenant>",
		Short: "Drop declared objects in reverse dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forTenant(cmd, args[0], func(ctx context.Context, a *ddl.Applier) error {
				return a.Drop(ctx)
			})
		},
	}

	cmd.AddCommand(applyCmd, dropCmd)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func printOutcome(w interface{ Write([]byte) (int, error) }, outcome *pipeline.RunOutcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tTABLE\tSTAGE\tROWS\tERROR")

	for _, tenant := range outcome.Tenants {
		if tenant.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", tenant.Slug, tenant.Err)
			continue
		}

		for _, table := range tenant.Tables {
			rows := "-"
			if table.Report != nil && table.Report.Summary != nil {
				rows = fmt.Sprintf("%d", table.Report.Summary.LoadedRows)
			}

			errText := ""
			if table.Err != nil {
				errText = table.Err.Error()
			}

			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				tenant.Slug, table.Table, table.Stage, rows, errText)
		}
	}

	tw.Flush()
}
