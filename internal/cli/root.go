// Package cli wires the vulndash cobra commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vulndash/internal/analysis"
	"vulndash/internal/config"
	"vulndash/internal/logger"
	"vulndash/internal/pipeline"
	"vulndash/internal/telemetry"
)

// Version is stamped into signed reports.
var Version = "0.1.0"

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "configs/vulndash.yaml"

const envPrefix = "VULNDASH"

// app carries state shared by the subcommands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "vulndash",
		Short:         "CVSS & CWE risk prioritization dashboard",
		Long:          "Analyze vulnerability JSON exports: severity counts, CVSS distribution, top CWE IDs and high-risk CSV export.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()

			return a.setup(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Path to YAML configuration file (default "+defaultConfigPath+" if present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: text or json")

	// Environment variable support (VULNDASH_SERVER_ADDR, etc.)
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newVerifyCmd(a))
	root.AddCommand(newFmtCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// flagKeys maps flag names of a command onto config keys.
var flagKeys = map[string]string{
	"config":     "config",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"addr":       "server.addr",
	"title":      "server.title",
	"threshold":  "analysis.risk_threshold",
	"bins":       "analysis.histogram_bins",
	"top":        "analysis.top_cwe",
}

// setup binds the invoked command's flags, then resolves configuration and logging.
func (a *app) setup(cmd *cobra.Command) error {
	var bindErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(key, f)
		}
	})

	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.New(cfg.Logging.Level, cfg.Logging.Format, a.stderr)

	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg := config.Default()

	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	a.applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyOverrides copies flag and environment values over the file configuration.
func (a *app) applyOverrides(cfg *config.Config) {
	setString := func(key string, dst *string) {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}

	setInt := func(key string, dst *int) {
		if a.v.IsSet(key) {
			*dst = a.v.GetInt(key)
		}
	}

	setString("server.addr", &cfg.Server.Addr)
	setString("server.title", &cfg.Server.Title)
	setInt("server.max_upload_mb", &cfg.Server.MaxUploadMb)
	setString("export.filename", &cfg.Export.Filename)
	setString("logging.level", &cfg.Logging.Level)
	setString("logging.format", &cfg.Logging.Format)
	setInt("analysis.histogram_bins", &cfg.Analysis.HistogramBins)
	setInt("analysis.top_cwe", &cfg.Analysis.TopCWE)

	if a.v.IsSet("analysis.risk_threshold") {
		cfg.Analysis.RiskThreshold = a.v.GetFloat64("analysis.risk_threshold")
	}
}

func (a *app) analysisOptions() analysis.Options {
	return analysis.Options{
		RiskThreshold: a.cfg.Analysis.RiskThreshold,
		HistogramBins: a.cfg.Analysis.HistogramBins,
		TopCWE:        a.cfg.Analysis.TopCWE,
	}
}

// newPipeline builds the pipeline. metrics may be nil.
func (a *app) newPipeline(metrics *telemetry.Metrics) *pipeline.Pipeline {
	return pipeline.New(a.analysisOptions(), a.log, metrics)
}

// failureError shows the banner text of a pipeline failure on the terminal.
type failureError struct {
	err     error
	failure pipeline.Failure
}

func (e *failureError) Error() string { return e.failure.Message }

func (e *failureError) Unwrap() error { return e.err }

// describe replaces known pipeline failures with their user-facing message.
func describe(err error) error {
	f := pipeline.Describe(err)
	if f.Kind == pipeline.KindInternal {
		return err
	}

	return &failureError{err: err, failure: f}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vulndash", Version)
		},
	}
}
