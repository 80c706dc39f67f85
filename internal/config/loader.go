package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ACM_MODEL_FACTORS.
const EnvPrefix = "ACM"

// Load reads ./acm.yaml, ./acm.toml or ./config/acm.* if one exists, merges
// it on top of the defaults and applies ACM_* environment overrides. A .env
// file in the working directory is loaded first if present.
//
// The returned Config has not been validated.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("acm")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file, defaults and environment only
	}
	return unmarshal(v)
}

// LoadFromFile reads the configuration from path. The format follows the
// file extension (yaml, toml or json).
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	// Missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the config file does not mention them.
func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("input.path", d.Input.Path)
	v.SetDefault("input.monthly_path", d.Input.MonthlyPath)
	v.SetDefault("input.max_maturity", d.Input.MaxMaturity)

	v.SetDefault("model.factors", d.Model.Factors)
	v.SetDefault("model.selected_maturities", d.Model.SelectedMaturities)
	v.SetDefault("model.drop_leading", d.Model.DropLeading)
	v.SetDefault("model.variance", d.Model.Variance)
	v.SetDefault("model.forward_date", d.Model.ForwardDate)

	v.SetDefault("point_in_time.min_observations", d.PointInTime.MinObservations)
	v.SetDefault("point_in_time.workers", d.PointInTime.Workers)

	v.SetDefault("output.dir", d.Output.Dir)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
