// Command acm estimates the Adrian, Crump and Moench term structure model on
// a yield curve stored as CSV and writes the decomposition to an output
// directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gusamarante/acm"
	"github.com/gusamarante/acm/internal/config"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "acm",
	Short: "ACM term premium decomposition of a yield curve",
	Long: `acm fits the Adrian, Crump and Moench (2013) affine term structure model
to a zero-coupon yield curve and decomposes yields into risk neutral
yields and term premia.

The curve is read from a CSV file with a date column followed by one
column per maturity in months (1m, 2m, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if input, _ := cmd.Flags().GetString("input"); input != "" {
			cfg.Input.Path = input
		}
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			cfg.Output.Dir = out
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger = newLogger(os.Stderr, cfg.Logging)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./acm.yaml if present)")
	rootCmd.PersistentFlags().String("input", "", "yield curve CSV, overrides input.path")
	rootCmd.PersistentFlags().String("output", "", "output directory, overrides output.dir")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(pitCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("acm %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
	},
}

// --- Estimate Command ---

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the model on the full sample",
	RunE: func(cmd *cobra.Command, args []string) error {
		curve, spec, err := loadInputs()
		if err != nil {
			return err
		}

		est := &acm.Estimator{Logger: logger}
		start := time.Now()
		model, err := est.Estimate(curve, spec)
		if err != nil {
			return fmt.Errorf("estimate: %w", err)
		}
		logger.Info("model estimated",
			slog.Int("factors", model.NumFactors()),
			slog.Duration("elapsed", time.Since(start)),
		)

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			model.Summary(cmd.OutOrStdout())
		}

		return writeEstimate(model)
	},
}

func init() {
	estimateCmd.Flags().Bool("quiet", false, "do not print the model summary")
}

// --- Point-in-time Command ---

var pitCmd = &cobra.Command{
	Use:   "pit",
	Short: "Estimate the model on every expanding window",
	Long: `pit re-estimates the model on every expanding window of the curve and
keeps, for each date, the term premium and expected returns that were
available using data up to that date only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		curve, spec, err := loadInputs()
		if err != nil {
			return err
		}
		// Each window resamples its own monthly curve
		spec.Monthly = nil

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		est := &acm.Estimator{Logger: logger}
		start := time.Now()
		res, err := est.PointInTime(ctx, curve, spec, cfg.PointInTimeOptions())
		if err != nil {
			return fmt.Errorf("point-in-time: %w", err)
		}
		logger.Info("point-in-time estimates done",
			slog.Int("skipped", len(res.Skipped)),
			slog.Duration("elapsed", time.Since(start)),
		)

		return writePointInTime(curve, res)
	},
}

// loadInputs reads the curve, and the monthly curve if configured.
func loadInputs() (*acm.YieldPanel, acm.ModelSpec, error) {
	spec, err := cfg.ModelSpec()
	if err != nil {
		return nil, spec, err
	}

	curve, err := acm.LoadYieldCSV(cfg.Input.Path, cfg.Input.MaxMaturity)
	if err != nil {
		return nil, spec, fmt.Errorf("load curve: %w", err)
	}
	T, N := curve.Dims()
	logger.Info("curve loaded",
		slog.String("path", cfg.Input.Path),
		slog.Int("observations", T),
		slog.Int("maturities", N),
	)

	if cfg.Input.MonthlyPath != "" {
		spec.Monthly, err = acm.LoadYieldCSV(cfg.Input.MonthlyPath, cfg.Input.MaxMaturity)
		if err != nil {
			return nil, spec, fmt.Errorf("load monthly curve: %w", err)
		}
	}
	return curve, spec, nil
}

func writeEstimate(model *acm.Model) error {
	dir := cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	yields := []struct {
		name  string
		panel *acm.YieldPanel
	}{
		{"model_implied.csv", model.Curves.ModelImplied},
		{"risk_neutral.csv", model.Curves.RiskNeutral},
		{"term_premium.csv", model.Curves.TermPremium},
		{"excess_returns.csv", model.ExcessReturns},
		{"expected_returns.csv", model.ExpectedReturns.HighFreq},
		{"expected_returns_monthly.csv", model.ExpectedReturns.Monthly},
	}
	factors := []struct {
		name  string
		panel *acm.FactorPanel
	}{
		{"factors.csv", model.Factors.HighFreq},
		{"factors_monthly.csv", model.Factors.Monthly},
	}

	m := newManifest("estimate", model.Curve).withModel(model)

	for _, y := range yields {
		if err := acm.WriteYieldCSV(filepath.Join(dir, y.name), y.panel); err != nil {
			return fmt.Errorf("write %s: %w", y.name, err)
		}
		m.Files = append(m.Files, y.name)
	}
	for _, f := range factors {
		if err := acm.WriteFactorCSV(filepath.Join(dir, f.name), f.panel); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
		m.Files = append(m.Files, f.name)
	}

	if err := writeForwardCurve(model, filepath.Join(dir, "forward_curves.txt")); err != nil {
		return err
	}
	m.Files = append(m.Files, "forward_curves.txt")

	if err := writeSummary(model, filepath.Join(dir, "summary.txt")); err != nil {
		return err
	}
	m.Files = append(m.Files, "summary.txt")

	if err := m.write(dir); err != nil {
		return err
	}
	logger.Info("outputs written", slog.String("dir", dir), slog.Int("files", len(m.Files)+1))
	return nil
}

func writeForwardCurve(model *acm.Model, path string) error {
	var date *time.Time
	if cfg.Model.ForwardDate != "" {
		d, err := time.Parse(time.DateOnly, cfg.Model.ForwardDate)
		if err != nil {
			return fmt.Errorf("model.forward_date: %w", err)
		}
		date = &d
	}

	fc, err := model.ForwardCurve(date)
	if err != nil {
		return fmt.Errorf("forward curve: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	acm.PrintForwardCurve(f, fc)
	return nil
}

func writeSummary(model *acm.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	model.Summary(f)
	return nil
}

func writePointInTime(curve *acm.YieldPanel, res *acm.PointInTimeResult) error {
	dir := cfg.Output.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	m := newManifest("pit", curve)
	m.Skipped = len(res.Skipped)

	if res.TermPremium == nil {
		logger.Warn("no window could be estimated", slog.Int("skipped", len(res.Skipped)))
		return m.write(dir)
	}

	if err := acm.WriteYieldCSV(filepath.Join(dir, "pit_term_premium.csv"), res.TermPremium); err != nil {
		return err
	}
	if err := acm.WriteYieldCSV(filepath.Join(dir, "pit_expected_returns.csv"), res.ExpectedReturns); err != nil {
		return err
	}
	m.Files = []string{"pit_term_premium.csv", "pit_expected_returns.csv"}

	if err := m.write(dir); err != nil {
		return err
	}
	logger.Info("outputs written", slog.String("dir", dir))
	return nil
}

// newLogger builds the process logger from the logging section.
func newLogger(w io.Writer, lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
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
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
