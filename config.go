package interact

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no configuration file is named explicitly.
const DefaultConfigPath = "config.yaml"

// Config is the resolved runtime configuration of the interactor.
type Config struct {
	Gateway          string
	WalletPath       string
	StatePath        string
	TracePath        string
	MetricsPath      string
	CounterCodePath  string
	CallerCodePath   string
	Gas              GasSchedule
	FeedValue        *big.Int
	SubmitRate       float64
	SubmitBurst      int
	QueryRetries     uint64
	QueryBackoff     time.Duration
	BatchConcurrency int
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Gateway:         "http://127.0.0.1:8545",
		WalletPath:      "wallet.key",
		StatePath:       DefaultStatePath,
		TracePath:       DefaultTracePath,
		MetricsPath:     DefaultMetricsPath,
		CounterCodePath: "output/counter.json",
		CallerCodePath:  "output/caller.json",
		Gas:             DefaultGasSchedule(),
		FeedValue:       new(big.Int).Set(DefaultFeedValue),
		SubmitBurst:     1,
		QueryRetries:    3,
		QueryBackoff:    200 * time.Millisecond,
	}
}

type fileConfig struct {
	Gateway          string        `yaml:"gateway"`
	WalletPath       string        `yaml:"walletPath"`
	StatePath        string        `yaml:"statePath"`
	TracePath        *string       `yaml:"tracePath"`
	MetricsPath      *string       `yaml:"metricsPath"`
	CounterCodePath  string        `yaml:"counterCodePath"`
	CallerCodePath   string        `yaml:"callerCodePath"`
	Gas              fileGas       `yaml:"gas"`
	FeedValue        string        `yaml:"feedValue"`
	SubmitRate       float64       `yaml:"submitRate"`
	SubmitBurst      int           `yaml:"submitBurst"`
	QueryRetries     *uint64       `yaml:"queryRetries"`
	QueryBackoff     time.Duration `yaml:"queryBackoff"`
	BatchConcurrency int           `yaml:"batchConcurrency"`
}

// fileGas holds gas limits as number expressions such as "30,000,000".
type fileGas struct {
	Deploy      string `yaml:"deploy"`
	MultiDeploy string `yaml:"multiDeploy"`
	Call        string `yaml:"call"`
	Upgrade     string `yaml:"upgrade"`
	Feed        string `yaml:"feed"`
}

// LoadConfig reads the YAML file at path over the defaults and applies
// INTERACT_* environment overrides. An empty path falls back to
// DefaultConfigPath, which may be absent.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := merge(&cfg, parsed); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge copies the fields set in src over dst.
func merge(dst *Config, src fileConfig) error {
	if src.Gateway != "" {
		dst.Gateway = src.Gateway
	}
	if src.WalletPath != "" {
		dst.WalletPath = src.WalletPath
	}
	if src.StatePath != "" {
		dst.StatePath = src.StatePath
	}
	if src.TracePath != nil {
		dst.TracePath = *src.TracePath
	}
	if src.MetricsPath != nil {
		dst.MetricsPath = *src.MetricsPath
	}
	if src.CounterCodePath != "" {
		dst.CounterCodePath = src.CounterCodePath
	}
	if src.CallerCodePath != "" {
		dst.CallerCodePath = src.CallerCodePath
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"gas.deploy", src.Gas.Deploy, &dst.Gas.Deploy},
		{"gas.multiDeploy", src.Gas.MultiDeploy, &dst.Gas.MultiDeploy},
		{"gas.call", src.Gas.Call, &dst.Gas.Call},
		{"gas.upgrade", src.Gas.Upgrade, &dst.Gas.Upgrade},
		{"gas.feed", src.Gas.Feed, &dst.Gas.Feed},
	} {
		if field.raw == "" {
			continue
		}
		v, err := NumExprUint64(field.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = v
	}

	if src.FeedValue != "" {
		v, err := ParseNumExpr(src.FeedValue)
		if err != nil {
			return fmt.Errorf("feedValue: %w", err)
		}
		dst.FeedValue = v
	}
	if src.SubmitRate != 0 {
		dst.SubmitRate = src.SubmitRate
	}
	if src.SubmitBurst != 0 {
		dst.SubmitBurst = src.SubmitBurst
	}
	if src.QueryRetries != nil {
		dst.QueryRetries = *src.QueryRetries
	}
	if src.QueryBackoff != 0 {
		dst.QueryBackoff = src.QueryBackoff
	}
	if src.BatchConcurrency != 0 {
		dst.BatchConcurrency = src.BatchConcurrency
	}
	return nil
}

// ApplyEnvOverrides applies INTERACT_* environment variables to cfg.
func ApplyEnvOverrides(cfg *Config) error {
	for name, dst := range map[string]*string{
		"INTERACT_GATEWAY":      &cfg.Gateway,
		"INTERACT_WALLET":       &cfg.WalletPath,
		"INTERACT_STATE":        &cfg.StatePath,
		"INTERACT_TRACE":        &cfg.TracePath,
		"INTERACT_METRICS":      &cfg.MetricsPath,
		"INTERACT_COUNTER_CODE": &cfg.CounterCodePath,
		"INTERACT_CALLER_CODE":  &cfg.CallerCodePath,
	} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	if raw := strings.TrimSpace(os.Getenv("INTERACT_SUBMIT_RATE")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("INTERACT_SUBMIT_RATE: %w", err)
		}
		cfg.SubmitRate = v
	}
	if raw := strings.TrimSpace(os.Getenv("INTERACT_QUERY_RETRIES")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("INTERACT_QUERY_RETRIES: %w", err)
		}
		cfg.QueryRetries = v
	}
	return nil
}

// DispatcherOptions converts the configuration into dispatcher options.
func (c Config) DispatcherOptions() []DispatcherOption {
	return []DispatcherOption{
		WithSubmitRate(c.SubmitRate, c.SubmitBurst),
		WithQueryRetries(c.QueryRetries),
		WithQueryBackoff(c.QueryBackoff),
		WithBatchConcurrency(c.BatchConcurrency),
	}
}

// ClientOptions converts the configuration into client options.
func (c Config) ClientOptions() []ClientOption {
	return []ClientOption{
		WithGasSchedule(c.Gas),
		WithFeedValue(c.FeedValue),
	}
}
