package commands

import (
	"testing"
)

func TestParseLogLevelFlagsDefault(t *testing.T) {
	level, pkgs, err := parseLogLevelFlags([]string{"info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != "info" {
		t.Errorf("expected default level info, got %s", level)
	}
	if len(pkgs) != 0 {
		t.Errorf("expected no package levels, got %v", pkgs)
	}
}

func TestParseLogLevelFlagsPerPackage(t *testing.T) {
	level, pkgs, err := parseLogLevelFlags([]string{"default=warn", "runner.direct=debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level != "warn" {
		t.Errorf("expected default level warn, got %s", level)
	}
	if pkgs["runner.direct"] != "debug" {
		t.Errorf("expected runner.direct=debug, got %v", pkgs)
	}
}

func TestParseLogLevelFlagsEnvOverriddenByFlag(t *testing.T) {
	t.Setenv("LOG_LEVEL_WORKER", "debug")

	_, pkgs, err := parseLogLevelFlags([]string{"worker=error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkgs["worker"] != "error" {
		t.Errorf("expected flag to override env, got %v", pkgs)
	}
}

func TestParseLogLevelFlagsEnvOnly(t *testing.T) {
	t.Setenv("LOG_LEVEL_RUNNER_DIRECT", "debug")

	_, pkgs, err := parseLogLevelFlags([]string{"info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkgs["runner.direct"] != "debug" {
		t.Errorf("expected env var to set runner.direct, got %v", pkgs)
	}
}

func TestParseLogLevelFlagsInvalidLevel(t *testing.T) {
	if _, _, err := parseLogLevelFlags([]string{"verbose"}); err == nil {
		t.Error("expected error for invalid default level")
	}
	if _, _, err := parseLogLevelFlags([]string{"worker=loud"}); err == nil {
		t.Error("expected error for invalid package level")
	}
}

func TestConvertEnvKeyToPackageName(t *testing.T) {
	if got := convertEnvKeyToPackageName("LOG_LEVEL_RUNNER_DIRECT"); got != "runner.direct" {
		t.Errorf("expected runner.direct, got %s", got)
	}
	if got := convertEnvKeyToPackageName("LOG_LEVEL_WORKER"); got != "worker" {
		t.Errorf("expected worker, got %s", got)
	}
}
