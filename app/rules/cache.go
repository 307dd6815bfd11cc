package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache loads automation rule files from a directory and serves them to the
// pipeline. Safe for concurrent use.
type Cache struct {
	rulesDir     string
	defaultQuota int
	cache        map[string]*Rule
	mu           sync.RWMutex
}

func NewCache(rulesDir string, defaultQuota int) *Cache {
	return &Cache{
		rulesDir:     rulesDir,
		defaultQuota: defaultQuota,
		cache:        make(map[string]*Rule),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.rulesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.rulesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}
	sort.Strings(files)

	for i, file := range files {
		fileName := filepath.Base(file)
		ruleName := fileName[:len(fileName)-4] // Remove .yml extension

		rule, err := c.LoadRule(ruleName, i)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Rule loaded", "rule", ruleName, "tenant", rule.Tenant, "enabled", rule.Settings.Enabled, "mode", rule.Copy.Mode, "channels", len(rule.Channels))
	}

	return nil
}

func (c *Cache) LoadRule(ruleName string, loadIndex int) (*Rule, error) {
	ruleFile := c.getRuleFilePath(ruleName)
	rule, err := c.parseRule(ruleFile)
	if err != nil {
		return nil, err
	}

	rule.Name = ruleName
	rule.LoadIndex = loadIndex

	if err := c.validateRule(rule); err != nil {
		return nil, fmt.Errorf("invalid rule %s: %w", ruleFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[rule.Name] = rule

	return rule, nil
}

func (c *Cache) GetRule(ruleName string) (*Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rule, ok := c.cache[ruleName]
	if !ok {
		return nil, fmt.Errorf("rule with name '%s' not found", ruleName)
	}
	return rule, nil
}

func (c *Cache) GetRules() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]*Rule, 0, len(c.cache))
	for _, r := range c.cache {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LoadIndex < all[j].LoadIndex
	})
	return all
}

// GetEnabledRules returns active rules only. Disabled rules never reach the
// matcher.
func (c *Cache) GetEnabledRules() []*Rule {
	enabled := make([]*Rule, 0)
	for _, r := range c.GetRules() {
		if r.Settings.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled
}

func (c *Cache) GetRuleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parseRule(ruleFile string) (*Rule, error) {
	data, err := os.ReadFile(ruleFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// An explicit zero stays zero: only an omitted field takes the default.
	if rule.Settings.DailyQuota == nil {
		quota := c.defaultQuota
		rule.Settings.DailyQuota = &quota
	}

	return &rule, nil
}

func (c *Cache) validateRule(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is nil")
	}

	if rule.Tenant == "" {
		return fmt.Errorf("tenant is required")
	}

	switch rule.Copy.Mode {
	case ModeTemplate:
		if rule.Copy.Template == "" {
			return fmt.Errorf("template is required for template mode")
		}
	case ModeGenerated:
		if rule.Copy.Model == "" {
			return fmt.Errorf("model is required for generated mode")
		}
	default:
		return fmt.Errorf("invalid copy mode: %s", rule.Copy.Mode)
	}

	if len(rule.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	for i, ch := range rule.Channels {
		if ch.Type == "" || ch.Target == "" {
			return fmt.Errorf("channel at index %d must have a type and a target", i)
		}
	}

	if rule.DailyQuota() < 0 {
		return fmt.Errorf("daily quota must be non-negative")
	}

	if rule.Match.MinPrice != nil && rule.Match.MaxPrice != nil && *rule.Match.MinPrice > *rule.Match.MaxPrice {
		return fmt.Errorf("min price must not exceed max price")
	}

	return nil
}

func (c *Cache) getRuleFilePath(ruleName string) string {
	return filepath.Join(c.rulesDir, ruleName+".yml")
}
