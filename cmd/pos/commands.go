package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-pos/cmd/pos/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
)

// exitCode carries a subcommand's exit status back to main.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func exitWith(code int) error {
	if code == cli.ExitOK {
		return nil
	}
	return exitCode(code)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pos",
		Short:         "Point-of-sale ticketing ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	root.AddCommand(
		newServeCommand(),
		newSchemaCommand(),
		newReportCommand(),
		newJobsCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	rt, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()
	if err := serve(cmd.Context(), rt); err != nil {
		return exitCode(cli.ExitFailure)
	}
	return nil
}

func newSchemaCommand() *cobra.Command {
	var opts cli.SchemaOptions
	cmd := &cobra.Command{
		Use:       "schema {init|rebuild|version}",
		Short:     "Create, rebuild or inspect the ledger tables",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{cli.SchemaInit, cli.SchemaRebuild, cli.SchemaVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			if !cmd.Flags().Changed("version") {
				opts.Version = rt.cfg.SchemaVersion
			}
			opts.Action = args[0]
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			schemaCLI, err := cli.NewSchemaCLI(rt.schemaManager())
			if err != nil {
				return err
			}
			return exitWith(schemaCLI.SchemaCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().IntVar(&opts.Version, "version", 0, "schema version (defaults to POS_SCHEMA_VERSION)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "allow rebuild to discard every bill")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	return cmd
}

func newReportCommand() *cobra.Command {
	var opts cli.ReportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print item sales grouped by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			service, err := rt.ledgerService(nil)
			if err != nil {
				return err
			}
			reportCLI, err := cli.NewReportCLI(service)
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exitWith(reportCLI.ReportCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "single business day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.From, "from", "", "first day of a range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day of a range (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "include bill totals")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	cmd.MarkFlagsMutuallyExclusive("date", "to")
	return cmd
}

func newJobsCommand() *cobra.Command {
	var opts cli.JobsOptions
	cmd := &cobra.Command{
		Use:       "jobs {trigger|inspect}",
		Short:     "Trigger a daily close or inspect the job queue",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{cli.JobsTrigger, cli.JobsInspect},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
			defer func() { _ = jobsCLI.Close() }()
			opts.Action = args[0]
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exitWith(jobsCLI.JobsCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "business day to close (defaults to yesterday)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	return cmd
}
