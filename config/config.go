package config

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/wippyai/nfm-bind/engine"
	"github.com/wippyai/nfm-bind/errors"
)

// Environment variables that override the file.
const (
	EnvPlugin   = "NFM_PLUGIN"
	EnvLogLevel = "NFM_LOG_LEVEL"
)

// Menu names one of the plugin's show entry points.
type Menu string

const (
	MenuFileSystem Menu = "filesystem"
	MenuPrograms   Menu = "programs"
	MenuWindows    Menu = "windows"
	MenuProcesses  Menu = "processes"
	MenuItems      Menu = "items"
)

// Menus lists every valid Menu in entry point order.
var Menus = []Menu{MenuFileSystem, MenuPrograms, MenuWindows, MenuProcesses, MenuItems}

// Valid reports whether m names a show entry point.
func (m Menu) Valid() bool {
	for _, v := range Menus {
		if m == v {
			return true
		}
	}
	return false
}

// Config is the host configuration.
type Config struct {
	Plugin string   `json:"plugin,omitempty"`
	Menu   Menu     `json:"menu,omitempty"`
	Items  []string `json:"items,omitempty"`
	Log    Log      `json:"log"`
	Wasm   Wasm     `json:"wasm"`
	Watch  bool     `json:"watch,omitempty"`
}

// Log selects the CLI logger.
type Log struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // console or json
}

// Wasm configures the wasm engine.
type Wasm struct {
	CacheDir         string `json:"cacheDir,omitempty"`
	MemoryLimitPages uint32 `json:"memoryLimitPages,omitempty"`
	EnableWASI       bool   `json:"enableWASI,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Menu: MenuFileSystem,
		Log: Log{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over Default. An empty path returns the
// defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindLoad).
			Path(path).
			Detail("read config").
			Cause(err).
			Build()
	}
	if err := Parse(data, cfg); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path).
			Detail("parse config").
			Cause(err).
			Build()
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg, keeping fields the document omits.
func Parse(data []byte, cfg *Config) error {
	return yaml.UnmarshalStrict(data, cfg)
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPlugin); ok && v != "" {
		c.Plugin = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks that the configuration can drive a host.
func (c *Config) Validate() error {
	if c.Plugin == "" {
		return errors.InvalidInput(errors.PhaseConfig, "plugin path is required")
	}
	if !c.Menu.Valid() {
		return invalid("unknown menu %q", c.Menu)
	}
	if c.Menu == MenuItems && len(c.Items) == 0 {
		return invalid("menu %q needs at least one item", c.Menu)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("%v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return invalid("unknown log format %q", c.Log.Format)
	}
	return nil
}

// EngineConfig returns the wasm engine settings.
func (c *Config) EngineConfig() *engine.Config {
	return &engine.Config{
		CacheDir:         c.Wasm.CacheDir,
		MemoryLimitPages: c.Wasm.MemoryLimitPages,
		EnableWASI:       c.Wasm.EnableWASI,
	}
}

func invalid(format string, args ...any) *errors.Error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
}
