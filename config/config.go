// Package config loads engine configuration from YAML with documented
// defaults. Everything is overridable: budget ceilings, the intent detection
// vocabulary, agent availability and timeouts, and logging.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/issuemesh/budget"
	"github.com/hupe1980/issuemesh/core"
	"github.com/hupe1980/issuemesh/router"
)

// BudgetConfig sets the per-session consumption ceilings.
type BudgetConfig struct {
	InitialTokens    int     `yaml:"initial_tokens"`
	InitialCost      float64 `yaml:"initial_cost"`
	WarningThreshold float64 `yaml:"warning_threshold"`
}

// AgentConfig controls agent availability and invocation bounds.
type AgentConfig struct {
	// TechLeadEnabled disables the tech lead when false (degraded setup).
	TechLeadEnabled bool `yaml:"tech_lead_enabled"`
	// TimeoutSeconds bounds a single agent invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full engine configuration.
type Config struct {
	Budget   BudgetConfig        `yaml:"budget"`
	Agents   AgentConfig         `yaml:"agents"`
	Logging  LoggingConfig       `yaml:"logging"`
	Keywords router.KeywordTable `yaml:"keywords"`
}

// Default returns the documented defaults: 10,000 tokens, $5.00, 0.8 warning
// threshold, tech lead enabled, 60s agent timeout, info level JSON logging
// and the built-in keyword vocabulary.
func Default() *Config {
	return &Config{
		Budget: BudgetConfig{
			InitialTokens:    budget.DefaultInitialTokens,
			InitialCost:      budget.DefaultInitialCost,
			WarningThreshold: budget.DefaultWarningThreshold,
		},
		Agents: AgentConfig{
			TechLeadEnabled: true,
			TimeoutSeconds:  60,
		},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Keywords: router.DefaultKeywordTable(),
	}
}

// Load reads a YAML file over the defaults. Missing keys keep their default
// values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses YAML bytes over the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Budget.InitialTokens < 0 || cfg.Budget.InitialCost < 0 {
		return nil, fmt.Errorf("config: budget ceilings must not be negative")
	}
	if cfg.Budget.WarningThreshold <= 0 || cfg.Budget.WarningThreshold > 1 {
		return nil, fmt.Errorf("config: warning threshold must be in (0, 1]")
	}
	return cfg, nil
}

// AgentTimeout returns the configured invocation timeout as a duration.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Agents.TimeoutSeconds) * time.Second
}

// BudgetSnapshot builds the initial budget snapshot for a new session.
func (c *Config) BudgetSnapshot() core.BudgetSnapshot {
	return core.BudgetSnapshot{
		InitialTokens:    c.Budget.InitialTokens,
		InitialCost:      c.Budget.InitialCost,
		WarningThreshold: c.Budget.WarningThreshold,
	}
}
