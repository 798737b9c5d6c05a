package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for bram-map
type Config struct {
	// Templates is the ordered list of candidate template names. Each memory
	// cell is mapped onto the first one that fits.
	Templates []string `json:"templates,omitempty"`

	// TemplateFiles lists template library files (YAML or JSON), as paths or
	// glob patterns relative to the design directory
	TemplateFiles []string `json:"templateFiles,omitempty"`

	// Mapping controls the mapping pipeline
	Mapping MappingConfig `json:"mapping,omitempty"`

	// Lint contains policy rule configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Analysis contains pass execution options
	Analysis AnalysisConfig `json:"analysis,omitempty"`
}

// MappingConfig controls how cells are mapped
type MappingConfig struct {
	// StrictAddress rejects write ports of one clock domain that use
	// different addresses, or that fold behind another write port, instead
	// of folding them with a warning
	StrictAddress bool `json:"strictAddress,omitempty"`

	// CellType selects the design cells treated as abstract memories
	CellType string `json:"cellType,omitempty"`

	// FailFast stops the pass at the first cell that cannot be mapped
	FailFast bool `json:"failFast,omitempty"`
}

// LintConfig contains policy configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// PolicyDir holds extra .rego files evaluated with the built-in policy
	PolicyDir string `json:"policyDir,omitempty"`
}

// CacheConfig controls the mapping cache
type CacheConfig struct {
	// Enabled turns on cache usage
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to the design directory if not absolute)
	Dir string `json:"dir,omitempty"`
}

// AnalysisConfig contains pass execution options
type AnalysisConfig struct {
	// MaxParallelCells limits concurrent cell mapping (0 = auto)
	MaxParallelCells int `json:"maxParallelCells,omitempty"`

	// Cache controls the mapping cache
	Cache CacheConfig `json:"cache,omitempty"`
}

const (
	DefaultCellType = "$mem"
	DefaultCacheDir = ".bram_map_cache"
)

// DefaultTemplates are tried when the configuration names none.
var DefaultTemplates = []string{"ecp5_dp16kd_tdp", "ecp5_dp16kd_pdp"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Templates:     append([]string(nil), DefaultTemplates...),
		TemplateFiles: []string{},
		Mapping: MappingConfig{
			CellType: DefaultCellType,
		},
		Lint: LintConfig{
			Rules: map[string]string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelCells: 0, // auto
			Cache: CacheConfig{
				Enabled: boolPtr(false),
				Dir:     DefaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./bram_map.json (current working directory)
//  2. ./.bram_map.json (current working directory)
//  3. <designDir>/bram_map.json (if different from cwd)
//  4. ~/.config/bram_map/config.json
//
// Returns DefaultConfig if no config file is found
func Load(designDir string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "bram_map.json"),
		filepath.Join(cwd, ".bram_map.json"),
	}

	if info, err := os.Stat(designDir); err == nil && info.IsDir() {
		absDir, _ := filepath.Abs(designDir)
		if absDir != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(designDir, "bram_map.json"),
				filepath.Join(designDir, ".bram_map.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "bram_map", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Templates) == 0 {
		c.Templates = append([]string(nil), DefaultTemplates...)
	}
	if c.TemplateFiles == nil {
		c.TemplateFiles = []string{}
	}
	if c.Mapping.CellType == "" {
		c.Mapping.CellType = DefaultCellType
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = DefaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(false)
	}
}

var severities = map[string]bool{"off": true, "info": true, "warning": true, "error": true}

// Validate rejects unknown rule severities and negative limits.
func (c *Config) Validate() error {
	for rule, severity := range c.Lint.Rules {
		if !severities[severity] {
			return fmt.Errorf("rule %s: unknown severity %q", rule, severity)
		}
	}
	if c.Analysis.MaxParallelCells < 0 {
		return fmt.Errorf("analysis.maxParallelCells must not be negative")
	}
	return nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the mapping cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled != nil && *c.Analysis.Cache.Enabled
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
