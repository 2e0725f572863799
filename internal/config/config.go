// Package config loads and validates the optional .ccinspect YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/ccinspect/internal/sections"
)

// FileName is the name of the configuration file.
const FileName = ".ccinspect"

// Default values.
const (
	DefaultCompiler  = "./compiler"
	DefaultTimeout   = 10 * time.Second
	DefaultMaxOutput = 1 << 20 // 1 MB
	DefaultCacheSize = 5
)

// EmptyPolicy decides how a section whose header was printed with no
// content is displayed.
type EmptyPolicy string

const (
	// EmptyAsPlaceholder shows the "not found" placeholder, as if the
	// section were absent.
	EmptyAsPlaceholder EmptyPolicy = "placeholder"
	// EmptyAsText shows the empty text as-is.
	EmptyAsText EmptyPolicy = "empty"
)

// DefaultPlaceholders are shown for sections the compiler did not print.
var DefaultPlaceholders = map[sections.Key]string{
	sections.AST:          "No AST output found.",
	sections.Intermediate: "No intermediate code found.",
	sections.Symbol:       "No symbol table found.",
	sections.Output:       "No output found.",
}

// Config holds the parsed .ccinspect configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int               `yaml:"version"`
	Compiler     string            `yaml:"compiler"`   // path to the compiler executable
	RawTimeout   string            `yaml:"timeout"`    // e.g. "10s"
	RawMaxOutput int               `yaml:"max_output"` // bytes
	Protocol     string            `yaml:"protocol"`   // v1 or v2
	EmptySection EmptyPolicy       `yaml:"empty_section"`
	Placeholders map[string]string `yaml:"placeholders"` // keyed by section name
	Store        StoreConfig       `yaml:"store"`

	// dir is the directory the file was loaded from; relative compiler
	// paths resolve against it.
	dir string
}

// StoreConfig controls where runs are kept.
type StoreConfig struct {
	Dir       string `yaml:"dir"`        // default: a fresh temp directory
	CacheSize int    `yaml:"cache_size"` // in-memory runs (default: 5)
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// CompilerPath returns the compiler path. Relative paths are resolved
// against the directory holding the config file, if one was loaded.
func (c *Config) CompilerPath() string {
	p := c.Compiler
	if p == "" {
		p = DefaultCompiler
	}
	if c.dir != "" && !filepath.IsAbs(p) {
		return filepath.Join(c.dir, p)
	}
	return p
}

// ProtocolVersion returns the configured output protocol, falling back to v1.
func (c *Config) ProtocolVersion() sections.Protocol {
	p, err := sections.ParseProtocol(c.Protocol)
	if err != nil {
		return sections.ProtocolV1
	}
	return p
}

// EmptyPolicy returns the configured empty-section policy, falling back
// to EmptyAsPlaceholder.
func (c *Config) EmptyPolicy() EmptyPolicy {
	if c.EmptySection == EmptyAsText {
		return EmptyAsText
	}
	return EmptyAsPlaceholder
}

// Placeholder returns the text shown when section k is missing.
func (c *Config) Placeholder(k sections.Key) string {
	if p, ok := c.Placeholders[string(k)]; ok && p != "" {
		return p
	}
	return DefaultPlaceholders[k]
}

// StoreDir returns the run store directory, resolved like CompilerPath.
// Empty means a temporary directory.
func (c *Config) StoreDir() string {
	p := c.Store.Dir
	if p != "" && c.dir != "" && !filepath.IsAbs(p) {
		return filepath.Join(c.dir, p)
	}
	return p
}

// CacheSize returns the number of runs kept in memory.
func (c *Config) CacheSize() int {
	if c.Store.CacheSize > 0 {
		return c.Store.CacheSize
	}
	return DefaultCacheSize
}

// Validate rejects values that would otherwise be silently ignored.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout: must be positive, got %s", d)
		}
	}
	if _, err := sections.ParseProtocol(c.Protocol); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	switch c.EmptySection {
	case "", EmptyAsPlaceholder, EmptyAsText:
	default:
		return fmt.Errorf("empty_section: unknown policy %q (want placeholder or empty)", c.EmptySection)
	}
	for name := range c.Placeholders {
		if _, err := sections.ParseKey(name); err != nil {
			return fmt.Errorf("placeholders: %w", err)
		}
	}
	return nil
}

// normalize rewrites placeholder aliases (e.g. "ir") to section keys.
// It assumes Validate has passed.
func (c *Config) normalize() {
	if len(c.Placeholders) == 0 {
		return
	}
	out := make(map[string]string, len(c.Placeholders))
	for name, text := range c.Placeholders {
		k, _ := sections.ParseKey(name)
		out[string(k)] = text
	}
	c.Placeholders = out
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // config file path; empty if none was found
}

// Load looks for a .ccinspect file in dir and its parents. If none
// exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := find(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.normalize()
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.dir = abs
	}
	return cfg, nil
}

// find walks upward from dir looking for a config file.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, FileName)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
