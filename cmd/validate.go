package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pulsar/bootstrap"
	"pulsar/config"
	"pulsar/core"
	"pulsar/detect"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// discardSender satisfies detect.ModuleSender for load-only runs
type discardSender struct{}

func (discardSender) SendThreatDerived(*core.Event, core.Value) {}

// validationResult is the JSON form of a validate run
type validationResult struct {
	Path  string   `json:"path"`
	Valid bool     `json:"valid"`
	Rules []string `json:"rules"`
	Error string   `json:"error,omitempty"`
}

// newValidateCmd creates the 'validate' subcommand
func newValidateCmd(opts *rootOptions) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load and compile a rules directory without processing events",
		Long: `Scan the directory for *.yaml rule files at any depth, parse them and
compile the complete rule set, exactly as "run" would at startup.

The directory defaults to --rules, then to rules.path from the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesPath, regexTimeout, err := resolveRules(cmd, opts, args)
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if !outputJSON && !color.NoColor {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Loading rules from " + rulesPath
				s.Start()
			}

			engine, err := detect.New(rulesPath, discardSender{},
				detect.WithCompiler(detect.NewConditionCompiler(regexTimeout)),
				detect.WithLogger(zap.NewNop().Sugar()))

			if s != nil {
				s.Stop()
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				result := validationResult{Path: rulesPath, Valid: err == nil, Rules: []string{}}
				if err != nil {
					result.Error = err.Error()
				} else {
					result.Rules = engine.Rules()
				}
				if encErr := outputAsJSON(out, result); encErr != nil {
					return encErr
				}
				return err
			}

			if err != nil {
				printLoadError(cmd.ErrOrStderr(), err, rulesPath)
				return err
			}
			renderRules(out, rulesPath, engine.Rules())
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}

// resolveRules picks the rules directory from the argument, the --rules
// flag or the configuration, in that order.
func resolveRules(cmd *cobra.Command, opts *rootOptions, args []string) (string, time.Duration, error) {
	v, err := newViper(cmd)
	if err != nil {
		return "", 0, err
	}
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return "", 0, err
	}

	path := cfg.Rules.Path
	if len(args) == 1 {
		path = args[0]
	}
	return path, cfg.Rules.RegexTimeout, nil
}

func outputAsJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printLoadError writes a classified load failure
func printLoadError(w io.Writer, err error, rulesPath string) {
	errorColor.Fprintln(w, "Rule set is invalid")
	fmt.Fprintln(w, bootstrap.ClassifyRuleLoadError(err, rulesPath))
}
