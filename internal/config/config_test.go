package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curia.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("CURIA_TEST_PORT", "9090")
	t.Setenv("CURIA_TEST_KEY", "sk-secret")

	path := writeConfig(t, `{
		"server": {"port": ${CURIA_TEST_PORT:8080}, "log_level": "${CURIA_TEST_LEVEL:info}"},
		"providers": [{"id": "p1", "type": "openai", "api_key": "${CURIA_TEST_KEY}"}],
		"roster": [{"id": "cato", "name": "Cato", "faction": "optimates", "rank": 9}]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port from env, got %d", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("expected default log level, got %q", cfg.Server.LogLevel)
	}
	if cfg.Providers[0].APIKey != "sk-secret" {
		t.Errorf("expected api key from env, got %q", cfg.Providers[0].APIKey)
	}
}

func TestLoadDefaultsPort(t *testing.T) {
	path := writeConfig(t, `{
		"roster": [{"id": "cato", "name": "Cato", "rank": 9}]
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsEmptyRoster(t *testing.T) {
	path := writeConfig(t, `{"roster": []}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty roster")
	}
}

func TestLoadRejectsDuplicateMembers(t *testing.T) {
	path := writeConfig(t, `{
		"roster": [
			{"id": "cato", "rank": 9},
			{"id": "cato", "rank": 3}
		]
	}`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for duplicate roster ids")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
