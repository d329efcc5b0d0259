// Package cmd provides the command-line interface for pulsar.
package cmd

import (
	"pulsar/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// rootOptions holds the persistent flags
type rootOptions struct {
	configFile string
	rulesPath  string
	logLevel   string
	noColor    bool
}

// NewRootCmd creates the pulsar command with all subcommands. Without a
// subcommand it behaves like "run".
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pulsar",
		Short: "Rule based threat detection for runtime security events",
		Long: `Pulsar evaluates runtime security events against user-authored YAML rules.

Every event matching a rule produces a derived threat event carrying the
rule name. Events are read from standard input (JSON lines or msgpack) and
optionally over HTTP; threats are written to standard output as JSON lines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "Rules directory, overrides rules.path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	runCmd := newRunCmd(opts)
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newValidateCmd(opts))

	return rootCmd
}

// newViper returns a config source with the command-line flags bound over
// the file and env layers.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := config.New()
	flags := cmd.Flags()
	bindings := map[string]string{
		"rules.path":          "rules",
		"log.level":           "log-level",
		"ingest.format":       "format",
		"ingest.http.enabled": "http",
		"ingest.http.port":    "http-port",
	}
	for key, name := range bindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}
