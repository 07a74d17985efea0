package security

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesFile extends the built-in denylists. Entries are appended to the
// defaults unless Replace is set.
type RulesFile struct {
	Replace         bool     `yaml:"replace"`
	BotMarkers      []string `yaml:"bot_markers"`
	SuspiciousPaths []string `yaml:"suspicious_paths"`
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (*RulesFile, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read security rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes rules from YAML bytes.
func ParseRules(data []byte) (*RulesFile, error) {
	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse security rules: %w", err)
	}
	for _, list := range [][]string{rules.BotMarkers, rules.SuspiciousPaths} {
		for _, entry := range list {
			if strings.TrimSpace(entry) == "" {
				return nil, fmt.Errorf("parse security rules: empty entry")
			}
		}
	}
	return &rules, nil
}

// Apply merges the rules file into cfg.
func (r *RulesFile) Apply(cfg Config) Config {
	if r == nil {
		return cfg
	}
	if r.Replace {
		if len(r.BotMarkers) > 0 {
			cfg.BotMarkers = r.BotMarkers
		}
		if len(r.SuspiciousPaths) > 0 {
			cfg.SuspiciousPaths = r.SuspiciousPaths
		}
		return cfg
	}

	cfg.BotMarkers = merge(orDefault(cfg.BotMarkers, DefaultBotMarkers), r.BotMarkers)
	cfg.SuspiciousPaths = merge(orDefault(cfg.SuspiciousPaths, DefaultSuspiciousPaths), r.SuspiciousPaths)
	return cfg
}

func orDefault(values, defaults []string) []string {
	if len(values) == 0 {
		return defaults
	}
	return values
}

func merge(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			key := strings.ToLower(strings.TrimSpace(v))
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
