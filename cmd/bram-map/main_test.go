package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/bram-map/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bram_map.json")
	out, err := execute(t, "init", "--path", path, "--force")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Created "+path) {
		t.Fatalf("unexpected output: %s", out)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Templates) != len(config.DefaultTemplates) {
		t.Fatalf("expected default templates, got %v", cfg.Templates)
	}
}

func TestTemplatesListsBuiltins(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bram_map.json")
	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}
	out, err := execute(t, "templates", dir, "--config", cfgPath)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	for _, want := range []string{"1 ecp5_dp16kd_tdp", "2 ecp5_dp16kd_pdp", "A: wo on CLK2, optional"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDiffIdenticalReports(t *testing.T) {
	dir := t.TempDir()
	report := `{"run_id": "x", "module": "top", "design": "d.json", "templates": [], "strict_address": false,
"cells": [], "failures": [{"cell": "ram1", "kind": "unmapped_ports", "message": "no slot"}],
"violations": [], "summary": {"cells": 1, "mapped": 0, "failed": 1, "cached": 0,
"violations": {"total_violations": 0, "errors": 0, "warnings": 0, "info": 0}}}`
	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	out, err := execute(t, "diff", path, path)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "No differences.") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestDesignDir(t *testing.T) {
	if got := designDir(filepath.Join("a", "b", "design.json")); got != filepath.Join("a", "b") {
		t.Fatalf("designDir of a file = %q", got)
	}
	if got := designDir("designs"); got != "designs" {
		t.Fatalf("designDir of a directory = %q", got)
	}
}
