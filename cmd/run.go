package cmd

import (
	"context"
	"fmt"

	"pulsar/bootstrap"

	"github.com/spf13/cobra"
)

// newRunCmd creates the 'run' subcommand
func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate events from stdin and write threats to stdout",
		Long: `Load the rule set, then read events from standard input and write one
threat per matching rule to standard output. The command exits when the
input ends, unless the HTTP listener is enabled, in which case it runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			v, err := newViper(cmd)
			if err != nil {
				return err
			}

			app, err := bootstrap.NewApp(ctx, bootstrap.Options{
				ConfigPath: opts.configFile,
				Viper:      v,
				Input:      cmd.InOrStdin(),
				Output:     cmd.OutOrStdout(),
			})
			if err != nil {
				if bootstrap.IsRuleLoadError(err) {
					printLoadError(cmd.ErrOrStderr(), err, v.GetString("rules.path"))
				}
				return err
			}

			if err := app.Start(ctx); err != nil {
				app.Shutdown()
				return fmt.Errorf("failed to start: %w", err)
			}

			app.WaitForShutdown(ctx)
			app.Shutdown()
			return nil
		},
	}

	cmd.Flags().String("format", "", "Input encoding: json or msgpack, overrides ingest.format")
	cmd.Flags().Bool("http", false, "Also accept events on POST /api/v1/events")
	cmd.Flags().Int("http-port", 0, "HTTP listener port, overrides ingest.http.port")

	return cmd
}
