// Package config loads and holds all trace-reduction engine configuration.
// Settings are layered: defaults → reducetrace-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds the full engine configuration. TYPES, KNOWN_STRINGS and the
// oracle predicates are not config-file data — they are Go code supplied by
// the host application via oracle.Capabilities — but their file-path/flag
// wiring points live here.
type Config struct {
	Trace1File string `json:"trace1File"`
	Trace2File string `json:"trace2File"`
	OutputFile string `json:"outputFile"`

	TimeBetweenDynamicPruningRuns int  `json:"timeBetweenDynamicPruningRuns"`
	Debug                         bool `json:"debug"`
	ShouldPrintURLsForMatchings   bool `json:"shouldPrintURLsForMatchings"`
	OnlyNonceValuesInOutput       bool `json:"onlyNonceValuesInOutput"`
	ShouldAbstractOutput          bool `json:"shouldAbstractOutput"`

	LogLevel string `json:"logLevel"`

	StatusPort      int    `json:"statusPort"`
	BindAddress     string `json:"bindAddress"`
	StatusToken     string `json:"statusToken"`
	CheckpointFile  string `json:"checkpointFile"` // path to bbolt pruning-checkpoint store; empty = in-memory only
	RunID           string `json:"runID"`
}

// Load returns config with defaults overridden by reducetrace-config.json
// and env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "reducetrace-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		TimeBetweenDynamicPruningRuns: 2,
		Debug:                         false,
		ShouldPrintURLsForMatchings:   false,
		OnlyNonceValuesInOutput:       false,
		ShouldAbstractOutput:          true,
		LogLevel:                      "info",
		StatusPort:                    8090,
		BindAddress:                   "127.0.0.1",
		CheckpointFile:                "pruning-checkpoints.db",
		RunID:                         "default",
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("TRACE1_FILE"); v != "" {
		cfg.Trace1File = v
	}
	if v := os.Getenv("TRACE2_FILE"); v != "" {
		cfg.Trace2File = v
	}
	if v := os.Getenv("OUTPUT_FILE"); v != "" {
		cfg.OutputFile = v
	}
	if v := os.Getenv("TIME_BETWEEN_DYNAMIC_PRUNING_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimeBetweenDynamicPruningRuns = n
		}
	}
	if v := os.Getenv("DEBUG"); v == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("SHOULD_PRINT_URLS_FOR_MATCHINGS"); v == "true" {
		cfg.ShouldPrintURLsForMatchings = true
	}
	if v := os.Getenv("ONLY_NONCE_VALUES_IN_OUTPUT"); v == "true" {
		cfg.OnlyNonceValuesInOutput = true
	}
	if v := os.Getenv("SHOULD_ABSTRACT_OUTPUT"); v == "false" {
		cfg.ShouldAbstractOutput = false
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STATUS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StatusPort = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("STATUS_TOKEN"); v != "" {
		cfg.StatusToken = v
	}
	if v := os.Getenv("CHECKPOINT_FILE"); v != "" {
		cfg.CheckpointFile = v
	}
	if v := os.Getenv("RUN_ID"); v != "" {
		cfg.RunID = v
	}
}
