// Command reducetrace reduces two recorded HTTP traces of the same
// interaction to the minimal subsequence of request/response pairs that
// still reproduces a researcher-defined oracle outcome when replayed
// against the live target.
//
// The oracle, known strings, and nonce-value type table are not config-file
// data: they are Go predicates the researcher supplies below, specific to
// the target being investigated. Edit the capabilities() function for a new
// target, then rebuild.
//
// Usage:
//
//	TRACE1_FILE=session-a.json TRACE2_FILE=session-b.json OUTPUT_FILE=out.json ./reducetrace
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reducetrace/internal/config"
	"reducetrace/internal/engine"
	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
	"reducetrace/internal/metrics"
	"reducetrace/internal/oracle"
	"reducetrace/internal/pruner"
	"reducetrace/internal/recording"
	"reducetrace/internal/status"
)

func main() {
	cfg := config.Load()
	log := logger.New("ENGINE", cfg.LogLevel)
	if cfg.Debug {
		log.SetLevel("debug")
	}

	if cfg.Trace1File == "" || cfg.Trace2File == "" || cfg.OutputFile == "" {
		log.Fatal("config", "TRACE1_FILE, TRACE2_FILE and OUTPUT_FILE must all be set")
	}

	trace1, err := recording.LoadFile(cfg.Trace1File)
	if err != nil {
		log.Fatalf("config", "loading %s: %v", cfg.Trace1File, err)
	}
	trace2, err := recording.LoadFile(cfg.Trace2File)
	if err != nil {
		log.Fatalf("config", "loading %s: %v", cfg.Trace2File, err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("config", "opening checkpoint store: %v", err)
	}
	defer store.Close()

	m := metrics.New()
	statusServer := status.New(cfg, m)
	go func() {
		if err := statusServer.ListenAndServe(); err != nil {
			log.Errorf("status", "server exited: %v", err)
		}
	}()

	eng := engine.New(log, cfg, capabilities(), m, statusServer, store)

	result, err := eng.Run(trace1, trace2)
	if err != nil {
		if _, ok := err.(*errs.ConfigError); ok {
			log.Fatalf("run", "%v", err)
		}
		log.Fatalf("run", "reduction failed: %v", err)
	}

	rendered := eng.Abstract(result)
	if err := writeOutput(cfg.OutputFile, rendered); err != nil {
		log.Fatalf("output", "writing %s: %v", cfg.OutputFile, err)
	}

	log.Infof("run", "reduced to %d pairs, wrote %s", len(result.Pairs), cfg.OutputFile)
}

func openStore(cfg *config.Config) (pruner.Store, error) {
	if cfg.CheckpointFile == "" {
		return pruner.NewMemoryStore(), nil
	}
	return pruner.NewBboltStore(cfg.CheckpointFile)
}

func writeOutput(path string, pairs any) error {
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// capabilities is the researcher-editable wiring point: which pair carries
// the oracle outcome, what the outcome looks like live, what to statically
// drop beyond the built-in static pruner, which literal strings are known
// (not nonces), and how to classify a nonce's value for output
// abstraction. The defaults below treat a request to a login/authorize
// endpoint as the oracle pair and accept any 2xx as a successful
// reproduction; a real investigation replaces both predicates with the
// actual success/failure signal being chased.
func capabilities() oracle.Capabilities {
	return oracle.Capabilities{
		UseOracle: func(p *httpmodel.Pair) bool {
			return strings.Contains(strings.ToLower(p.Request.URL), "/login") ||
				strings.Contains(strings.ToLower(p.Request.URL), "/authorize")
		},
		Oracle: func(res *httpmodel.Response) bool {
			return res.StatusCode >= 200 && res.StatusCode < 300
		},
		CustomFilter: nil,
		KnownStrings: map[string]string{},
		Types: []oracle.TypeRule{
			{Name: "uuid", Pattern: `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`},
			{Name: "hex", Pattern: `[0-9a-fA-F]{16,}`},
			{Name: "jwt", Pattern: `[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`},
			{Name: "numeric", Pattern: `[0-9]+`},
		},
	}
}
