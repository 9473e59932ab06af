package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "DESK"

// UpstreamConfig selects and tunes the market-data source.
type UpstreamConfig struct {
	Source         string
	SubgraphURL    string
	TradesIn       string
	PoolDaysIn     string
	IndexIn        string
	PageSize       int
	MaxPages       int
	PageTimeout    time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// StoreConfig selects the snapshot store and shared infrastructure.
type StoreConfig struct {
	Kind      string
	StateDir  string
	PGDSN     string
	RedisAddr string
}

// EventsConfig configures the Kafka publisher. No brokers disables publishing.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// newViper merges .env, environment variables, flags and an optional config file.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setUpstreamDefaults(v)
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func setUpstreamDefaults(v *viper.Viper) {
	v.SetDefault("source", "subgraph")
	v.SetDefault("page-size", 1000)
	v.SetDefault("max-pages", 0)
	v.SetDefault("page-timeout", 15*time.Second)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
}

func setStoreDefaults(v *viper.Viper) {
	v.SetDefault("store", "memory")
	v.SetDefault("state-dir", "./data/snapshots")
	v.SetDefault("kafka-topic", "pool-snapshots")
}

func upstreamConfig(v *viper.Viper) UpstreamConfig {
	return UpstreamConfig{
		Source:         strings.ToLower(v.GetString("source")),
		SubgraphURL:    v.GetString("subgraph-url"),
		TradesIn:       v.GetString("trades-in"),
		PoolDaysIn:     v.GetString("pool-days-in"),
		IndexIn:        v.GetString("index-in"),
		PageSize:       v.GetInt("page-size"),
		MaxPages:       v.GetInt("max-pages"),
		PageTimeout:    v.GetDuration("page-timeout"),
		RequestTimeout: v.GetDuration("request-timeout"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
	}
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:      strings.ToLower(v.GetString("store")),
		StateDir:  v.GetString("state-dir"),
		PGDSN:     v.GetString("pg-dsn"),
		RedisAddr: v.GetString("redis-addr"),
	}
}

func eventsConfig(v *viper.Viper) EventsConfig {
	return EventsConfig{
		KafkaBrokers: getStringSlice(v, "kafka-brokers"),
		KafkaTopic:   v.GetString("kafka-topic"),
	}
}

// Validate checks that the selected source has its inputs.
func (c UpstreamConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	switch c.Source {
	case "subgraph":
		if c.SubgraphURL == "" {
			return fmt.Errorf("subgraph url is required")
		}
	case "file":
	default:
		return fmt.Errorf("unknown source %q (want subgraph or file)", c.Source)
	}
	return nil
}

// Validate checks the store selection.
func (c StoreConfig) Validate() error {
	switch c.Kind {
	case "memory":
	case "file":
		if c.StateDir == "" {
			return fmt.Errorf("state dir is required for file store")
		}
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, file or postgres)", c.Kind)
	}
	return nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339). Empty is zero.
func ParseTimestamp(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseInt(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return tm.Unix(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
