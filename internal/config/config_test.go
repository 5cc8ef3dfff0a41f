package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearChittiEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(name, envPrefix) {
			os.Unsetenv(name)
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearChittiEnv(t)
	os.Setenv("CHITTI_BRAIN_CREDENTIAL", "test-key")
	defer os.Unsetenv("CHITTI_BRAIN_CREDENTIAL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brain.BaseURL != "https://generativelanguage.googleapis.com" {
		t.Fatalf("unexpected default base url: %q", cfg.Brain.BaseURL)
	}
	if cfg.Brain.RequestTimeout != 60*time.Second {
		t.Fatalf("expected default request_timeout=60s, got %v", cfg.Brain.RequestTimeout)
	}
	if !cfg.Tools.Bash.Enabled {
		t.Fatalf("expected tools.bash.enabled default true")
	}
	if cfg.Tools.Bash.Timeout != 30*time.Second {
		t.Fatalf("expected tools.bash.timeout default 30s, got %v", cfg.Tools.Bash.Timeout)
	}
	if cfg.Conductor.MaxTurnRoundtrips != 12 {
		t.Fatalf("expected conductor.max_turn_roundtrips default 12, got %d", cfg.Conductor.MaxTurnRoundtrips)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected log.level default info, got %q", cfg.Log.Level)
	}
}

func TestLoadMissingCredentialFails(t *testing.T) {
	clearChittiEnv(t)
	_, err := Load("")
	if err != ErrMissingCredential {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearChittiEnv(t)
	os.Setenv("CHITTI_BRAIN_CREDENTIAL", "test-key")
	os.Setenv("CHITTI_BRAIN_BASE_URL", "https://example.test")
	os.Setenv("CHITTI_BRAIN_REQUEST_TIMEOUT", "90s")
	os.Setenv("CHITTI_TOOLS_BASH_ENABLED", "false")
	os.Setenv("CHITTI_TOOLS_BASH_MAX_OUTPUT_BYTES", "2048")
	os.Setenv("CHITTI_CONDUCTOR_AUTHORIZE_BY_DEFAULT", "true")
	os.Setenv("CHITTI_LOG_LEVEL", "debug")
	defer clearChittiEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brain.BaseURL != "https://example.test" {
		t.Fatalf("expected overridden base_url, got %q", cfg.Brain.BaseURL)
	}
	if cfg.Brain.RequestTimeout != 90*time.Second {
		t.Fatalf("expected overridden request_timeout=90s, got %v", cfg.Brain.RequestTimeout)
	}
	if cfg.Tools.Bash.Enabled {
		t.Fatalf("expected tools.bash.enabled overridden to false")
	}
	if cfg.Tools.Bash.MaxOutputBytes != 2048 {
		t.Fatalf("expected overridden max_output_bytes=2048, got %d", cfg.Tools.Bash.MaxOutputBytes)
	}
	if !cfg.Conductor.AuthorizeByDefault {
		t.Fatalf("expected authorize_by_default overridden to true")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Log.Level)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	clearChittiEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "CHITTI_BRAIN_CREDENTIAL=from-dotenv\nCHITTI_BRAIN_DEFAULT_MODEL=gemini-test\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	defer os.Unsetenv("CHITTI_BRAIN_CREDENTIAL")
	defer os.Unsetenv("CHITTI_BRAIN_DEFAULT_MODEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brain.Credential != "from-dotenv" {
		t.Fatalf("expected credential loaded from .env, got %q", cfg.Brain.Credential)
	}
	if cfg.Brain.DefaultModel != "gemini-test" {
		t.Fatalf("expected default_model loaded from .env, got %q", cfg.Brain.DefaultModel)
	}
}

func TestLoadMissingDotEnvFileIsNotAnError(t *testing.T) {
	clearChittiEnv(t)
	os.Setenv("CHITTI_BRAIN_CREDENTIAL", "test-key")
	defer os.Unsetenv("CHITTI_BRAIN_CREDENTIAL")

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("expected a missing .env file to be tolerated, got %v", err)
	}
}
