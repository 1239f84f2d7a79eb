package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/nfm-bind/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nfm.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Menu != MenuFileSystem || cfg.Log.Level != "warn" || cfg.Log.Format != "console" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
plugin: ./menus.wasm
menu: items
items:
  - alpha
  - beta
log:
  level: debug
wasm:
  memoryLimitPages: 64
  enableWASI: true
watch: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Plugin != "./menus.wasm" || cfg.Menu != MenuItems {
		t.Errorf("plugin/menu = %q/%q", cfg.Plugin, cfg.Menu)
	}
	if len(cfg.Items) != 2 || cfg.Items[1] != "beta" {
		t.Errorf("items = %v", cfg.Items)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("format default lost: %q", cfg.Log.Format)
	}
	if !cfg.Watch || !cfg.Wasm.EnableWASI || cfg.Wasm.MemoryLimitPages != 64 {
		t.Errorf("wasm/watch = %+v %v", cfg.Wasm, cfg.Watch)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	ec := cfg.EngineConfig()
	if ec.MemoryLimitPages != 64 || !ec.EnableWASI {
		t.Errorf("engine config = %+v", ec)
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindLoad}) {
		t.Errorf("missing file: %v", err)
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Errorf("cause not preserved: %v", err)
	}

	_, err = Load(writeFile(t, "plugin: x\nbogus: 1\n"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
		t.Errorf("unknown field: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPlugin:   "/opt/menus.so",
		EnvLogLevel: "error",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Plugin = "from-file.so"
	cfg.ApplyEnv(lookup)
	if cfg.Plugin != "/opt/menus.so" || cfg.Log.Level != "error" {
		t.Errorf("env not applied: %+v", cfg)
	}

	env[EnvPlugin] = ""
	cfg.Plugin = "kept.so"
	cfg.ApplyEnv(lookup)
	if cfg.Plugin != "kept.so" {
		t.Errorf("empty variable overrode plugin: %q", cfg.Plugin)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no plugin", func(c *Config) { c.Plugin = "" }},
		{"unknown menu", func(c *Config) { c.Menu = "desktop" }},
		{"items without list", func(c *Config) { c.Menu = MenuItems }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Plugin = "menus.so"
			tt.mutate(cfg)
			err := cfg.Validate()
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
				t.Errorf("Validate = %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		l, err := NewLogger(Log{Level: "info", Format: format})
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		if l.Core().Enabled(-1) {
			t.Errorf("%q: debug enabled at info level", format)
		}
		if !l.Core().Enabled(0) {
			t.Errorf("%q: info disabled", format)
		}
	}

	if _, err := NewLogger(Log{Format: "xml"}); err == nil {
		t.Error("expected format error")
	}
	if _, err := NewLogger(Log{Level: "loud"}); err == nil {
		t.Error("expected level error")
	}
}
