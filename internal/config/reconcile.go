package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReconcileConfig holds configuration for the reconcile and snapshot commands.
type ReconcileConfig struct {
	Upstream    UpstreamConfig
	Store       StoreConfig
	Events      EventsConfig
	Date        string
	PassTimeout time.Duration
	LockTTL     time.Duration
	LogLevel    string
}

// LoadReconcile merges config file, environment variables, and flags into ReconcileConfig.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"pass-timeout": 5 * time.Minute,
		"lock-ttl":     10 * time.Minute,
	})
	if err != nil {
		return ReconcileConfig{}, err
	}
	setStoreDefaults(v)

	return ReconcileConfig{
		Upstream:    upstreamConfig(v),
		Store:       storeConfig(v),
		Events:      eventsConfig(v),
		Date:        v.GetString("date"),
		PassTimeout: v.GetDuration("pass-timeout"),
		LockTTL:     v.GetDuration("lock-ttl"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Reconcile         ReconcileConfig
	Listen            string
	ReconcileInterval time.Duration
	HistoryWindow     time.Duration
	CacheTTL          time.Duration
	ShutdownTimeout   time.Duration
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	rec, err := LoadReconcile(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v, err := newViper(cfgFile, flags, map[string]any{
		"listen":             ":8080",
		"reconcile-interval": time.Duration(0),
		"history-window":     7 * 24 * time.Hour,
		"cache-ttl":          24 * time.Hour,
		"shutdown-timeout":   10 * time.Second,
	})
	if err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Reconcile:         rec,
		Listen:            v.GetString("listen"),
		ReconcileInterval: v.GetDuration("reconcile-interval"),
		HistoryWindow:     v.GetDuration("history-window"),
		CacheTTL:          v.GetDuration("cache-ttl"),
		ShutdownTimeout:   v.GetDuration("shutdown-timeout"),
	}, nil
}
