package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"reducetrace/internal/config"
	"reducetrace/internal/httpmodel"
)

func TestCapabilities_UseOracleMatchesLoginPath(t *testing.T) {
	caps := capabilities()

	req, err := httpmodel.NewRequest("POST", "https://example.com/login", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	pair := &httpmodel.Pair{Request: req, Response: &httpmodel.Response{}}

	if !caps.UseOracle(pair) {
		t.Errorf("expected /login to be oracle-eligible")
	}
}

func TestCapabilities_UseOracleRejectsUnrelatedPath(t *testing.T) {
	caps := capabilities()

	req, err := httpmodel.NewRequest("GET", "https://example.com/static/app.js", "HTTP/1.1", httpmodel.NewHeaders(nil), nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	pair := &httpmodel.Pair{Request: req, Response: &httpmodel.Response{}}

	if caps.UseOracle(pair) {
		t.Errorf("expected an unrelated static asset path to be oracle-ineligible")
	}
}

func TestCapabilities_OracleAccepts2xx(t *testing.T) {
	caps := capabilities()
	if !caps.Oracle(&httpmodel.Response{StatusCode: 200}) {
		t.Errorf("expected 200 to satisfy the default oracle")
	}
	if caps.Oracle(&httpmodel.Response{StatusCode: 401}) {
		t.Errorf("expected 401 to fail the default oracle")
	}
}

func TestCapabilities_TypesIncludeUUIDRule(t *testing.T) {
	caps := capabilities()
	var uuidRule string
	for _, rule := range caps.Types {
		if rule.Name == "uuid" {
			uuidRule = rule.Pattern
		}
	}
	if uuidRule == "" {
		t.Fatalf("expected a uuid type rule to be present")
	}
}

func TestOpenStore_EmptyCheckpointFileUsesMemoryStore(t *testing.T) {
	store, err := openStore(&config.Config{})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer store.Close()

	if _, ok := store.Get("missing-run"); ok {
		t.Errorf("expected a fresh memory store to have no checkpoints")
	}
}

func TestWriteOutput_WritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := writeOutput(path, []map[string]string{{"a": "b"}}); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded []map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["a"] != "b" {
		t.Errorf("unexpected round-tripped content: %+v", decoded)
	}
}
