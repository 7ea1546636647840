package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/use-agent/profilescan/auth"
	"github.com/use-agent/profilescan/models"
	"github.com/use-agent/profilescan/report"
	"github.com/use-agent/profilescan/scan"
)

// scanFlags are shared by the root command and `scan`.
type scanFlags struct {
	textFile    string
	selector    string
	maxRetries  int
	showBrowser bool
	login       bool
	noSession   bool
	model       string
	provider    string
	apiKey      string
	output      string
}

var flags scanFlags

func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flags.textFile, "text-file", "", "analyze a saved page (.html) or text file instead of scraping")
	f.StringVar(&flags.selector, "selector", "", "CSS selector narrowing an HTML --text-file")
	f.IntVar(&flags.maxRetries, "max-retries", models.DefaultMaxRetries, "extra scrape rounds after the first")
	f.BoolVar(&flags.showBrowser, "show-browser", false, "show the browser window")
	f.BoolVar(&flags.login, "login", false, "sign in with PROFILESCAN_LOGIN_ID / PROFILESCAN_LOGIN_SECRET when no session exists")
	f.BoolVar(&flags.noSession, "no-session", false, "use a throwaway browser profile for this run")
	f.StringVar(&flags.model, "model", "", "model to use (default from config, gpt-5)")
	f.StringVar(&flags.provider, "provider", "", "LLM provider: openai or gemini")
	f.StringVar(&flags.apiKey, "api-key", "", "LLM API key (default from OPENAI_API_KEY / GEMINI_API_KEY)")
	f.StringVarP(&flags.output, "output", "o", report.FormatText, "output format: text or json")
}

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scrape and analyze one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0])
		},
	}
	addScanFlags(cmd)
	return cmd
}

func runScan(cmd *cobra.Command, url string) error {
	if err := models.ValidateProfileURL(url, cfg.Scraper.AllowAnyHost); err != nil {
		return withExit(exitUsage, err)
	}

	out, err := report.NewWriter(os.Stdout, flags.output, isatty.IsTerminal(os.Stdout.Fd()))
	if err != nil {
		return withExit(exitUsage, err)
	}

	cfg.UseProvider(flags.provider)
	if flags.apiKey != "" {
		cfg.LLM.APIKey = flags.apiKey
	}
	if flags.model != "" {
		cfg.LLM.Model = flags.model
	}

	req := scan.Request{
		URL:        url,
		Selector:   flags.selector,
		Model:      cfg.LLM.Model,
		MaxRetries: flags.maxRetries,
		Login:      flags.login,
		NoSession:  flags.noSession,
		Visible:    flags.showBrowser,
	}
	if flags.textFile != "" {
		data, err := os.ReadFile(flags.textFile)
		if err != nil {
			return withExit(exitUsage, fmt.Errorf("read text file: %w", err))
		}
		req.Text = string(data)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, auth.NewTerminalPrompter(), nil)
	if err != nil {
		return withExit(exitUsage, err)
	}

	slog.Info("scanning profile", "url", url, "provider", c.gateway.Provider(), "model", cfg.LLM.Model)
	result, err := c.service.Run(ctx, req)

	doc := &report.Document{Profile: result.Profile, Scrape: result.Scrape, Report: result.Report}
	if err != nil {
		doc.Error = models.AsScrapeError(err).ToDetail()
	}
	if werr := out.Write(doc); werr != nil {
		slog.Error("failed to write report", "error", werr)
	}
	if err == nil {
		return nil
	}

	code := exitCode(err)
	if code == exitNoContent {
		printTips(err)
	}
	return withExit(code, err)
}

// exitCode maps a scan error to the process exit code.
func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrAnalysisFailed), errors.Is(err, models.ErrAnalysisUnavailable):
		return exitNoAnalysis
	case models.CodeOf(err) == models.ErrCodeInvalidInput:
		return exitUsage
	default:
		return exitNoContent
	}
}

func printTips(err error) {
	fmt.Fprintln(os.Stderr, "\nCould not read the profile. Things to try:")
	if errors.Is(err, models.ErrAuthenticationFailed) {
		fmt.Fprintln(os.Stderr, "  - check PROFILESCAN_LOGIN_ID / PROFILESCAN_LOGIN_SECRET")
		fmt.Fprintln(os.Stderr, "  - run `profilescan session clear` and sign in again with --login --show-browser")
	} else {
		fmt.Fprintln(os.Stderr, "  - run with --login to sign in (set PROFILESCAN_LOGIN_ID / PROFILESCAN_LOGIN_SECRET)")
		fmt.Fprintln(os.Stderr, "  - increase --max-retries")
	}
	fmt.Fprintln(os.Stderr, "  - save the page from your own browser and pass it with --text-file profile.html")
	if artifact := models.ArtifactOf(err); artifact != "" {
		fmt.Fprintln(os.Stderr, "  - inspect the screenshot of the failing page:", artifact)
	}
}

