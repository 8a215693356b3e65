package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/livefield/internal/fsutil"
	"github.com/aretw0/livefield/pkg/core"
)

const (
	// DefaultConfigFile is the config looked up when no path is given.
	DefaultConfigFile = "config.json"
	// DefaultDebounce is the quiet period before a saved file is pushed.
	DefaultDebounce = 2 * time.Second
	// DefaultWatchPattern selects the files the monitor reacts to.
	DefaultWatchPattern = "**/*.js"
	// PasswordEnv overrides the configured password.
	PasswordEnv = "LIVEFIELD_PASSWORD"
)

// Config is the workspace configuration file. Relative paths in it are
// resolved against the directory holding the file.
type Config struct {
	API           string         `json:"square9api" yaml:"square9api"`
	User          string         `json:"user" yaml:"user"`
	Password      string         `json:"password" yaml:"password"`
	DatabaseID    int            `json:"dbid" yaml:"dbid"`
	Directory     string         `json:"directory" yaml:"directory"`
	VersionIgnore bool           `json:"version_ignore,omitempty" yaml:"version_ignore,omitempty"`
	RateLimit     float64        `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Debounce      string         `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	Watch         string         `json:"watch,omitempty" yaml:"watch,omitempty"`
	Mapping       []core.Mapping `json:"mapping" yaml:"mapping"`

	path string
	// Keys written by other tools, kept verbatim across Save.
	extra     map[string]json.RawMessage
	yamlExtra []*yaml.Node
}

var configKeys = map[string]bool{
	"square9api":     true,
	"user":           true,
	"password":       true,
	"dbid":           true,
	"directory":      true,
	"version_ignore": true,
	"rate_limit":     true,
	"debounce":       true,
	"watch":          true,
	"mapping":        true,
}

// configCodec reads and writes one config file format.
type configCodec interface {
	Unmarshal(data []byte, cfg *Config) error
	Marshal(cfg *Config) ([]byte, error)
}

type jsonCodec struct{}

func (jsonCodec) Unmarshal(data []byte, cfg *Config) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if id, ok := raw["dbid"]; ok {
		n, err := parseDatabaseID(id)
		if err != nil {
			return err
		}
		raw["dbid"] = json.RawMessage(strconv.Itoa(n))
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(normalized, cfg); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}

	cfg.extra = nil
	for k, v := range raw {
		if configKeys[k] {
			continue
		}
		if cfg.extra == nil {
			cfg.extra = make(map[string]json.RawMessage)
		}
		cfg.extra[k] = v
	}
	return nil
}

func (jsonCodec) Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if len(cfg.extra) == 0 {
		return buf.Bytes(), nil
	}

	// Append the unknown keys before the closing brace, sorted.
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = bytes.TrimSuffix(out, []byte("}"))
	out = bytes.TrimRight(out, "\n")

	keys := make([]string, 0, len(cfg.extra))
	for k := range cfg.extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		var value bytes.Buffer
		if err := json.Indent(&value, cfg.extra[k], "    ", "    "); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		out = append(out, ",\n    "...)
		out = append(out, name...)
		out = append(out, ": "...)
		out = append(out, value.Bytes()...)
	}
	return append(out, "\n}\n"...), nil
}

type yamlCodec struct{}

func (yamlCodec) Unmarshal(data []byte, cfg *Config) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil
	}

	cfg.yamlExtra = nil
	if len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode {
		m := doc.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			key, value := m.Content[i], m.Content[i+1]
			switch {
			case key.Value == "dbid" && value.Kind == yaml.ScalarNode && value.Tag == "!!str":
				n, err := strconv.Atoi(strings.TrimSpace(value.Value))
				if err != nil {
					return fmt.Errorf("invalid dbid %q: must be a number", value.Value)
				}
				value.Value = strconv.Itoa(n)
				value.Tag = "!!int"
				value.Style = 0
			case !configKeys[key.Value]:
				cfg.yamlExtra = append(cfg.yamlExtra, key, value)
			}
		}
	}

	if err := doc.Decode(cfg); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	return nil
}

func (yamlCodec) Marshal(cfg *Config) ([]byte, error) {
	if len(cfg.yamlExtra) == 0 {
		return yaml.Marshal(cfg)
	}
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return nil, err
	}
	node.Content = append(node.Content, cfg.yamlExtra...)
	return yaml.Marshal(&node)
}

// parseDatabaseID accepts the dbid as a number or a numeric string.
func parseDatabaseID(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("invalid dbid %s: must be a number", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid dbid %q: must be a number", s)
	}
	return n, nil
}

func codecFor(path string) configCodec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

// LoadConfig reads and validates the config at path.
func LoadConfig(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", abs)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := codecFor(abs).Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	cfg.path = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.API == "" {
		errs = append(errs, errors.New("square9api is required"))
	}
	if c.DatabaseID <= 0 {
		errs = append(errs, errors.New("dbid must be a positive database id"))
	}
	if c.Directory == "" {
		errs = append(errs, errors.New("directory is required"))
	}
	if c.Debounce != "" {
		if _, err := time.ParseDuration(c.Debounce); err != nil {
			errs = append(errs, fmt.Errorf("invalid debounce: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes the config back in the format it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no file path")
	}
	data, err := codecFor(c.path).Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return fsutil.WriteFileAtomic(c.path, data, 0600)
}

// Path returns the absolute config file path.
func (c *Config) Path() string {
	return c.path
}

// SetPath binds the config to a file, e.g. for configs built in code.
func (c *Config) SetPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	c.path = abs
	return nil
}

// Root is the directory holding the config file.
func (c *Config) Root() string {
	return filepath.Dir(c.path)
}

// ScriptDir is the absolute directory scripts are written to.
func (c *Config) ScriptDir() string {
	return c.resolve(c.Directory)
}

// Resolve returns the absolute path of a mapped script file.
func (c *Config) Resolve(m core.Mapping) string {
	return c.resolve(m.Filename)
}

func (c *Config) resolve(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root(), p)
}

// Rel returns path relative to the root in slash form, the way mapping
// filenames are stored.
func (c *Config) Rel(path string) string {
	rel, err := filepath.Rel(c.Root(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Secret returns the password, preferring the environment override.
func (c *Config) Secret() string {
	if v := os.Getenv(PasswordEnv); v != "" {
		return v
	}
	return c.Password
}

// DebounceInterval returns the monitor quiet period.
func (c *Config) DebounceInterval() time.Duration {
	if c.Debounce == "" {
		return DefaultDebounce
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d < 0 {
		return DefaultDebounce
	}
	return d
}

// WatchPattern returns the doublestar pattern for monitored files.
func (c *Config) WatchPattern() string {
	if c.Watch == "" {
		return DefaultWatchPattern
	}
	return c.Watch
}

// MappingByID returns the mapping of a field.
func (c *Config) MappingByID(id int) (core.Mapping, bool) {
	for _, m := range c.Mapping {
		if m.ID == id {
			return m, true
		}
	}
	return core.Mapping{}, false
}

// MappingByPath returns the mapping whose file resolves to path.
func (c *Config) MappingByPath(path string) (core.Mapping, bool) {
	target := filepath.Clean(path)
	for _, m := range c.Mapping {
		if c.Resolve(m) == target {
			return m, true
		}
	}
	return core.Mapping{}, false
}

// clone returns a copy that can be mutated without affecting readers.
func (c *Config) clone() *Config {
	cp := *c
	cp.Mapping = append([]core.Mapping(nil), c.Mapping...)
	if c.extra != nil {
		cp.extra = make(map[string]json.RawMessage, len(c.extra))
		for k, v := range c.extra {
			cp.extra[k] = v
		}
	}
	cp.yamlExtra = append([]*yaml.Node(nil), c.yamlExtra...)
	return &cp
}
