package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/drift-batch/internal/domain"
)

// Config holds all process settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string // empty disables the health/metrics server
	ShutdownTimeout time.Duration

	// Kafka result publishing, disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string

	OutputDir       string
	SettingsFile    string
	Workers         int
	ContinueOnError bool
	RunTimeout      time.Duration // zero means runs never time out
	Python          string

	ProbeSource  bool
	ProbeTimeout time.Duration

	MergeInput    string
	MergeOutput   string
	MergeJoin     domain.JoinMode
	MergeSkipFill bool

	Settings Settings
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("DRIFT_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	continueOnError, err := parseBool("DRIFT_CONTINUE_ON_ERROR", false)
	if err != nil {
		return nil, err
	}
	runTimeout, err := parseDuration("DRIFT_RUN_TIMEOUT", "0s", true)
	if err != nil {
		return nil, err
	}
	probeSource, err := parseBool("DRIFT_PROBE_SOURCE", false)
	if err != nil {
		return nil, err
	}
	probeTimeout, err := parseDuration("DRIFT_PROBE_TIMEOUT", "15s", false)
	if err != nil {
		return nil, err
	}
	join, err := domain.ParseJoinMode(sharedcfg.EnvOrDefault("MERGE_JOIN", string(domain.JoinByIdentifier)))
	if err != nil {
		return nil, fmt.Errorf("invalid MERGE_JOIN: %w", err)
	}
	skipFill, err := parseBool("MERGE_SKIP_FILL", false)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	settingsFile := os.Getenv("DRIFT_SETTINGS_FILE")
	settings, err := LoadSettings(settingsFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "drift-run-results"),

		OutputDir:       sharedcfg.EnvOrDefault("DRIFT_OUTPUT_DIR", "z_output"),
		SettingsFile:    settingsFile,
		Workers:         workers,
		ContinueOnError: continueOnError,
		RunTimeout:      runTimeout,
		Python:          sharedcfg.EnvOrDefault("DRIFT_PYTHON", "python3"),

		ProbeSource:  probeSource,
		ProbeTimeout: probeTimeout,

		MergeInput:    sharedcfg.EnvOrDefault("MERGE_INPUT", "LocationDateForBruce.xlsx"),
		MergeOutput:   sharedcfg.EnvOrDefault("MERGE_OUTPUT", "LocationDataInitialFinal.xlsx"),
		MergeJoin:     join,
		MergeSkipFill: skipFill,

		Settings: settings,
	}

	if cfg.OutputDir == "" {
		return nil, errors.New("DRIFT_OUTPUT_DIR is required")
	}
	if cfg.MergeInput == cfg.MergeOutput {
		return nil, errors.New("MERGE_OUTPUT must differ from MERGE_INPUT")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether run results should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
