// Package config loads the CLI configuration from YAML with NETGUARD_*
// environment overrides and turns it into netguard options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ambiyansyah-risyal/netguard"
	"github.com/ambiyansyah-risyal/netguard/internal/logging"
)

// Config is the file layout.
type Config struct {
	Client       ClientConfig       `yaml:"client"`
	Log          logging.Config     `yaml:"log"`
	TokenStore   TokenStoreConfig   `yaml:"token_store"`
	Reachability ReachabilityConfig `yaml:"reachability"`
}

// ClientConfig mirrors netguard.Configuration.
type ClientConfig struct {
	RetryLimit       int               `yaml:"retry_limit"`
	BackoffBase      float64           `yaml:"backoff_base"`
	BackoffScale     time.Duration     `yaml:"backoff_scale"`
	ThrottleInterval time.Duration     `yaml:"throttle_interval"`
	Timeout          time.Duration     `yaml:"timeout"`
	Logging          LoggingFlags      `yaml:"logging"`
	Pinning          PinningConfig     `yaml:"pinning"`
	TokenStorageKey  string            `yaml:"token_storage_key"`
	DefaultEncoding  string            `yaml:"default_encoding"`
	MethodEncoding   map[string]string `yaml:"method_encoding"`
	Metrics          bool              `yaml:"metrics"`
}

// LoggingFlags mirrors netguard.LoggerConfig plus the master switch.
type LoggingFlags struct {
	Enabled         bool `yaml:"enabled"`
	RequestHeaders  bool `yaml:"request_headers"`
	RequestBody     bool `yaml:"request_body"`
	ResponseHeaders bool `yaml:"response_headers"`
	ResponseBody    bool `yaml:"response_body"`
	StatusCode      bool `yaml:"status_code"`
	Curl            bool `yaml:"curl"`
	Retries         bool `yaml:"retries"`
}

// PinningConfig lists SPKI pins per host. A host with no pins gets default
// evaluation.
type PinningConfig struct {
	Enabled                 bool                `yaml:"enabled"`
	AllHostsMustBeEvaluated bool                `yaml:"all_hosts_must_be_evaluated"`
	Domains                 map[string][]string `yaml:"domains"`
}

// TokenStoreConfig locates the SQLite token database.
type TokenStoreConfig struct {
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
}

// ReachabilityConfig enables the pre-flight TCP probe when Addr is set.
type ReachabilityConfig struct {
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig matches netguard.DefaultConfiguration.
func DefaultConfig() *Config {
	def := netguard.DefaultConfiguration()
	return &Config{
		Client: ClientConfig{
			RetryLimit:       def.RetryLimit,
			BackoffBase:      def.BackoffBase,
			BackoffScale:     def.BackoffScale,
			ThrottleInterval: def.ThrottleInterval,
			Timeout:          def.Timeout,
			Logging: LoggingFlags{
				Enabled:         def.EnableLogging,
				RequestHeaders:  true,
				RequestBody:     true,
				ResponseHeaders: true,
				ResponseBody:    true,
				StatusCode:      true,
				Curl:            true,
				Retries:         true,
			},
			Pinning: PinningConfig{
				AllHostsMustBeEvaluated: def.AllHostsMustBeEvaluated,
			},
			TokenStorageKey: def.TokenStorageKey,
			DefaultEncoding: def.DefaultEncoding.String(),
		},
		Log: logging.DefaultConfig(),
		TokenStore: TokenStoreConfig{
			DSN:         "netguard.db",
			TablePrefix: "netguard_",
		},
		Reachability: ReachabilityConfig{
			Interval: 10 * time.Second,
			Timeout:  3 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// a malformed one is an error. Environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error

	if v := os.Getenv("NETGUARD_RETRY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NETGUARD_RETRY_LIMIT: %w", err))
		} else {
			c.Client.RetryLimit = n
		}
	}
	durations := map[string]*time.Duration{
		"NETGUARD_BACKOFF_SCALE":     &c.Client.BackoffScale,
		"NETGUARD_THROTTLE_INTERVAL": &c.Client.ThrottleInterval,
		"NETGUARD_TIMEOUT":           &c.Client.Timeout,
	}
	for name, target := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			*target = d
		}
	}
	if v := os.Getenv("NETGUARD_LOGGING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NETGUARD_LOGGING: %w", err))
		} else {
			c.Client.Logging.Enabled = b
		}
	}
	if v := os.Getenv("NETGUARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NETGUARD_LOG_FILE"); v != "" {
		c.Log.File.Path = v
	}
	if v := os.Getenv("NETGUARD_TOKEN_KEY"); v != "" {
		c.Client.TokenStorageKey = v
	}
	if v := os.Getenv("NETGUARD_TOKEN_DB"); v != "" {
		c.TokenStore.DSN = v
	}
	if v := os.Getenv("NETGUARD_REACHABILITY_ADDR"); v != "" {
		c.Reachability.Addr = v
	}

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Client.BackoffBase == 0 {
		c.Client.BackoffBase = def.Client.BackoffBase
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = def.Client.Timeout
	}
	if c.Client.TokenStorageKey == "" {
		c.Client.TokenStorageKey = def.Client.TokenStorageKey
	}
	if c.Client.DefaultEncoding == "" {
		c.Client.DefaultEncoding = def.Client.DefaultEncoding
	}
	if c.TokenStore.DSN == "" {
		c.TokenStore.DSN = def.TokenStore.DSN
	}
	if len(c.Log.Writers) == 0 {
		c.Log.Writers = def.Log.Writers
	}
}

// Configuration converts the client section into a netguard.Configuration.
func (c *Config) Configuration() (netguard.Configuration, error) {
	cfg := netguard.DefaultConfiguration()
	cc := c.Client

	cfg.RetryLimit = cc.RetryLimit
	cfg.BackoffBase = cc.BackoffBase
	cfg.BackoffScale = cc.BackoffScale
	cfg.ThrottleInterval = cc.ThrottleInterval
	cfg.Timeout = cc.Timeout
	cfg.EnableLogging = cc.Logging.Enabled
	cfg.Log = netguard.LoggerConfig{
		LogRequestHeaders:  cc.Logging.RequestHeaders,
		LogRequestBody:     cc.Logging.RequestBody,
		LogResponseHeaders: cc.Logging.ResponseHeaders,
		LogResponseBody:    cc.Logging.ResponseBody,
		LogStatusCode:      cc.Logging.StatusCode,
		LogCurl:            cc.Logging.Curl,
		LogRetries:         cc.Logging.Retries,
	}
	cfg.TokenStorageKey = cc.TokenStorageKey

	enc, ok := netguard.ParseEncoding(cc.DefaultEncoding)
	if !ok {
		return cfg, fmt.Errorf("client.default_encoding: unknown encoding %q", cc.DefaultEncoding)
	}
	cfg.DefaultEncoding = enc
	for method, name := range cc.MethodEncoding {
		enc, ok := netguard.ParseEncoding(name)
		if !ok {
			return cfg, fmt.Errorf("client.method_encoding.%s: unknown encoding %q", method, name)
		}
		cfg.MethodEncoding[strings.ToUpper(method)] = enc
	}

	cfg.EnableSSLPinning = cc.Pinning.Enabled
	cfg.AllHostsMustBeEvaluated = cc.Pinning.AllHostsMustBeEvaluated
	for host, pins := range cc.Pinning.Domains {
		if len(pins) == 0 {
			cfg.PinnedDomains[host] = netguard.DefaultEvaluation{}
			continue
		}
		cfg.PinnedDomains[host] = netguard.NewPublicKeyPinning(pins...)
	}
	return cfg, nil
}

// ToOptions builds the client options for this configuration. logger and
// store may be nil.
func (c *Config) ToOptions(logger netguard.Logger, store netguard.TokenStore) ([]netguard.Option, error) {
	cfg, err := c.Configuration()
	if err != nil {
		return nil, err
	}
	opts := []netguard.Option{netguard.WithConfiguration(cfg)}
	if logger != nil {
		opts = append(opts, netguard.WithLogger(logger))
	}
	if store != nil {
		opts = append(opts, netguard.WithTokenStore(store))
	}
	if c.Client.Metrics {
		opts = append(opts, netguard.WithMetrics())
	}
	return opts, nil
}

// ReachabilityMonitor returns the configured probe, or nil when no address
// is set. The caller starts and stops it.
func (c *Config) ReachabilityMonitor(logger netguard.Logger) *netguard.ReachabilityMonitor {
	if c.Reachability.Addr == "" {
		return nil
	}
	return netguard.NewReachabilityMonitor(c.Reachability.Addr, c.Reachability.Interval, c.Reachability.Timeout, logger)
}
