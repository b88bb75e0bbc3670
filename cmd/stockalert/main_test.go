package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRejectsMissingSource(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	if code := run(nil, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "stockalert:") {
		t.Fatalf("expected prefixed error, got %q", stderr.String())
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	if code := run([]string{"--mode=single"}, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestRunMigrateReportsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stockalert.toml")
	if err := os.WriteFile(path, []byte("[service]\nname = \"x\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var stderr bytes.Buffer
	if code := run([]string{"--config-file", path, "--migrate"}, &stderr); code != exitError {
		t.Fatalf("expected error exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "database.dsn is required") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}
