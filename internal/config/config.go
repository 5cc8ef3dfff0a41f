// Package config loads process-wide configuration per spec §6: a
// .env-style file in the working directory layered under the process
// environment, both folded into koanf's dotted namespace — grounded on
// tjfontaine-polyglot-llm-gateway/internal/pkg/config/config.go's
// file-then-env Load(), adapted from its YAML-file layer to a .env layer
// (via github.com/joho/godotenv, grounded in zhengjr9-dify-agent's go.mod)
// since §6 names a ".env-style file" rather than a YAML document.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from process environment variable names before
// they are lowercased and re-dotted into koanf keys, e.g.
// CHITTI_BRAIN_CREDENTIAL -> brain.credential.
const envPrefix = "CHITTI_"

// Config mirrors spec §6's configuration table exactly; field names and
// defaults are not invented.
type Config struct {
	Brain     BrainConfig     `koanf:"brain"`
	Tools     ToolsConfig     `koanf:"tools"`
	Conductor ConductorConfig `koanf:"conductor"`
	Log       LogConfig       `koanf:"log"`
}

type BrainConfig struct {
	Credential     string        `koanf:"credential"`
	BaseURL        string        `koanf:"base_url"`
	DefaultModel   string        `koanf:"default_model"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type ToolsConfig struct {
	Bash BashConfig `koanf:"bash"`
}

type BashConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
}

type ConductorConfig struct {
	MaxTurnRoundtrips  int  `koanf:"max_turn_roundtrips"`
	AuthorizeByDefault bool `koanf:"authorize_by_default"`
}

// LogConfig.Level is one of §6's log.level values: off|error|warn|info|debug|trace.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ErrMissingCredential is returned by Load when brain.credential is unset —
// a fatal configuration error per §7, exit code 1 at the CLI boundary.
var ErrMissingCredential = fmt.Errorf("config: brain.credential is required (set CHITTI_BRAIN_CREDENTIAL or brain.credential in .env)")

// envKeyToKoanf maps a CHITTI_-prefixed environment variable name onto its
// dotted koanf key. A plain "replace _ with ." (the teacher's
// polyglot-llm-gateway/internal/config/config.go scheme) is ambiguous once a
// key segment itself contains an underscore, e.g. BASE_URL — so unlike the
// teacher, unknown suffixes fall back to a best-effort single-split instead
// of guessing at segment boundaries.
var envKeyToKoanf = func(s string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	known := map[string]string{
		"brain_credential":               "brain.credential",
		"brain_base_url":                 "brain.base_url",
		"brain_default_model":            "brain.default_model",
		"brain_request_timeout":          "brain.request_timeout",
		"tools_bash_enabled":             "tools.bash.enabled",
		"tools_bash_timeout":             "tools.bash.timeout",
		"tools_bash_max_output_bytes":    "tools.bash.max_output_bytes",
		"conductor_max_turn_roundtrips":  "conductor.max_turn_roundtrips",
		"conductor_authorize_by_default": "conductor.authorize_by_default",
		"log_level":                      "log.level",
	}
	if key, ok := known[trimmed]; ok {
		return key
	}
	return strings.Replace(trimmed, "_", ".", 1)
}

// Load reads .env (if present) into the process environment, then layers
// CHITTI_-prefixed environment variables over the defaults below and
// unmarshals into Config. dotenvPath is usually ".env"; pass "" to skip
// file loading entirely (e.g. under test).
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading %s: %w", dotenvPath, err)
		}
	}

	k := koanf.New(".")

	defaults := map[string]any{
		"brain.base_url":                 "https://generativelanguage.googleapis.com",
		"brain.request_timeout":          "60s",
		"tools.bash.enabled":             true,
		"tools.bash.timeout":             "30s",
		"tools.bash.max_output_bytes":    1 << 20,
		"conductor.max_turn_roundtrips":  12,
		"conductor.authorize_by_default": false,
		"log.level":                      "info",
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("config: setting default %s: %w", key, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyToKoanf), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Brain.Credential == "" {
		return nil, ErrMissingCredential
	}
	return &cfg, nil
}
