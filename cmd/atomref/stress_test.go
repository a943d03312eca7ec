package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runStressForTest(t *testing.T, args []string, environ []string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := runStressContext(context.Background(), args, runEnv{Stdout: &out, Stderr: &errOut, Environ: environ})
	return code, out.String(), errOut.String()
}

func TestStressDefaults(t *testing.T) {
	code, out, errOut := runStressForTest(t, nil, nil)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "atom counter: final=10 commits=10 rejected=0 attempted=10") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "OK chain 0 -> 10 verified") {
		t.Fatalf("expected verified chain:\n%s", out)
	}
	if !strings.Contains(out, `atomref_commits_total{op="swap",ref="counter"} 10`) {
		t.Fatalf("expected prometheus output:\n%s", out)
	}
	if !strings.Contains(out, `atomref_events_published_total{bus="ref_transitions",type="ref_swap"} 10`) {
		t.Fatalf("expected bus metrics:\n%s", out)
	}
}

func TestStressFlagsOverrideEnvironment(t *testing.T) {
	environ := []string{"ATOMREF_STRESS_WORKERS=2", "ATOMREF_STRESS_NAME=env"}
	code, out, errOut := runStressForTest(t, []string{"-workers", "5", "-increments", "4", "-metrics=false"}, environ)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "atom env: final=20 commits=20") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if strings.Contains(out, "# HELP") {
		t.Fatalf("metrics should be suppressed:\n%s", out)
	}
}

func TestStressValidatorFlag(t *testing.T) {
	code, out, errOut := runStressForTest(t, []string{"-workers", "4", "-increments", "25", "-validator", "value <= 50", "-metrics=false"}, nil)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "final=50 commits=50 rejected=50 attempted=100") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestStressConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomref.yaml")
	payload := "stress:\n  name: yaml-counter\n  workers: 3\n  increments: 3\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, out, errOut := runStressForTest(t, []string{"-metrics=false"}, []string{"ATOMREF_CONFIG=" + path})
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "atom yaml-counter: final=9 commits=9") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestStressInvalidSettings(t *testing.T) {
	code, _, errOut := runStressForTest(t, []string{"-workers", "0", "-validator", "value +"}, nil)
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(errOut, "ERROR stress.workers must be positive") {
		t.Fatalf("expected workers problem:\n%s", errOut)
	}
	if !strings.Contains(errOut, "ERROR stress.validator") {
		t.Fatalf("expected validator problem:\n%s", errOut)
	}
}

func TestStressRejectedInitialValue(t *testing.T) {
	code, out, _ := runStressForTest(t, []string{"-validator", "value > 0", "-metrics=false"}, nil)
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(out, "FAILED invalid reference state") {
		t.Fatalf("expected failure summary:\n%s", out)
	}
}

func TestStressHelp(t *testing.T) {
	code, _, errOut := runStressForTest(t, []string{"-h"}, nil)
	if code != 0 {
		t.Fatalf("expected success, got %d", code)
	}
	if !strings.Contains(errOut, "Usage: atomref stress") || !strings.Contains(errOut, "-workers") {
		t.Fatalf("expected help output:\n%s", errOut)
	}
}

func TestStressBadFlag(t *testing.T) {
	code, _, _ := runStressForTest(t, []string{"-nope"}, nil)
	if code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
}
