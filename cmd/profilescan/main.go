// Command profilescan scrapes a profile page through an automated browser
// and asks a language model whether it looks fake.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/profilescan/config"
	"github.com/use-agent/profilescan/models"
)

// Exit codes.
const (
	exitOK         = 0
	exitUsage      = 1 // bad input or configuration
	exitNoContent  = 2 // profile content could not be obtained
	exitNoAnalysis = 3 // content obtained, analysis failed
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "profilescan [url]",
	Short:         "Check a LinkedIn profile for signs of a fake or fraudulent candidate",
	Version:       models.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return withExit(exitUsage, err)
		}
		cfg = loaded
		initLogger(cfg.Log)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runScan(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.profilescan/config.toml)")
	addScanFlags(rootCmd)
	rootCmd.AddCommand(newScanCmd(), newSessionCmd(), newServeCmd())
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	code := exitUsage
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	// Scan failures are already part of the rendered report.
	if code == exitUsage {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// stdout carries only the report.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
