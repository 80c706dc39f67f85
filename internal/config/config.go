// Package config loads the settings of the acm command.
package config

import (
	"fmt"
	"strings"

	"github.com/gusamarante/acm"
)

// Config is the root configuration of an estimation run.
type Config struct {
	Input       InputConfig       `mapstructure:"input"         toml:"input"`
	Model       ModelConfig       `mapstructure:"model"         toml:"model"`
	PointInTime PointInTimeConfig `mapstructure:"point_in_time" toml:"point_in_time"`
	Output      OutputConfig      `mapstructure:"output"        toml:"output"`
	Logging     LoggingConfig     `mapstructure:"logging"       toml:"logging"`
}

// InputConfig locates the yield curve data.
type InputConfig struct {
	// CSV with a date column and one column per maturity in months
	Path string `mapstructure:"path" toml:"path"`
	// Optional CSV with the monthly curve. Empty resamples Path.
	MonthlyPath string `mapstructure:"monthly_path" toml:"monthly_path"`
	// Columns above this maturity are ignored; 0 keeps every column
	MaxMaturity int `mapstructure:"max_maturity" toml:"max_maturity"`
}

// ModelConfig mirrors acm.ModelSpec.
type ModelConfig struct {
	Factors            int    `mapstructure:"factors"             toml:"factors"`
	SelectedMaturities []int  `mapstructure:"selected_maturities" toml:"selected_maturities"`
	DropLeading        int    `mapstructure:"drop_leading"        toml:"drop_leading"`
	Variance           string `mapstructure:"variance"            toml:"variance"` // "pooled" or "per_maturity"
	// Date of the forward curves, YYYY-MM-DD. Empty uses the last date.
	ForwardDate string `mapstructure:"forward_date" toml:"forward_date"`
}

type PointInTimeConfig struct {
	MinObservations int `mapstructure:"min_observations" toml:"min_observations"`
	Workers         int `mapstructure:"workers"          toml:"workers"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  toml:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format" toml:"format"` // "text" or "json"
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Input: InputConfig{
			MaxMaturity: 120,
		},
		Model: ModelConfig{
			Factors:     acm.DefaultFactors,
			DropLeading: acm.DefaultDropLeading,
			Variance:    "pooled",
		},
		PointInTime: PointInTimeConfig{
			MinObservations: acm.DefaultMinObservations,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values the estimator cannot use.
func (c *Config) Validate() error {
	var errs []string

	if c.Input.Path == "" {
		errs = append(errs, "input.path is required")
	}
	if c.Input.MaxMaturity < 0 {
		errs = append(errs, "input.max_maturity must be >= 0")
	}
	if c.Model.Factors <= 0 {
		errs = append(errs, fmt.Sprintf("model.factors must be > 0, got %d", c.Model.Factors))
	}
	for _, m := range c.Model.SelectedMaturities {
		if m <= 0 {
			errs = append(errs, fmt.Sprintf("model.selected_maturities: %d is not a maturity", m))
		}
	}
	if _, err := parseVariance(c.Model.Variance); err != nil {
		errs = append(errs, err.Error())
	}
	if c.PointInTime.MinObservations < 0 {
		errs = append(errs, "point_in_time.min_observations must be >= 0")
	}
	if c.PointInTime.Workers < 0 {
		errs = append(errs, "point_in_time.workers must be >= 0")
	}
	if c.Output.Dir == "" {
		errs = append(errs, "output.dir is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not one of text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ModelSpec converts the model section to an acm.ModelSpec. The monthly
// panel is left for the caller to load.
func (c *Config) ModelSpec() (acm.ModelSpec, error) {
	policy, err := parseVariance(c.Model.Variance)
	if err != nil {
		return acm.ModelSpec{}, err
	}

	drop := c.Model.DropLeading
	if drop == 0 {
		// keep every column
		drop = -1
	}

	return acm.ModelSpec{
		Factors:            c.Model.Factors,
		SelectedMaturities: append([]int(nil), c.Model.SelectedMaturities...),
		DropLeading:        drop,
		Variance:           policy,
	}, nil
}

// PointInTimeOptions converts the point-in-time section.
func (c *Config) PointInTimeOptions() acm.PointInTimeOptions {
	return acm.PointInTimeOptions{
		MinObservations: c.PointInTime.MinObservations,
		Workers:         c.PointInTime.Workers,
	}
}

func parseVariance(s string) (acm.VariancePolicy, error) {
	switch strings.ToLower(s) {
	case "", "pooled":
		return acm.VariancePooled, nil
	case "per_maturity":
		return acm.VariancePerMaturity, nil
	default:
		return 0, fmt.Errorf("model.variance %q is not one of pooled, per_maturity", s)
	}
}
