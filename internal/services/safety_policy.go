package services

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed safety_policy.yaml
var safetyPolicyYAML []byte

// SafetyPolicy is the versioned phrase table behind the fallback detector.
// One document, one source of truth, loaded once.
type SafetyPolicy struct {
	Version    int                         `yaml:"version"`
	Categories map[string]SafetyCategories `yaml:"categories"`
}

type SafetyCategories struct {
	Phrases []string `yaml:"phrases"`
}

var (
	policyOnce sync.Once
	policy     *SafetyPolicy
	policyErr  error
)

// LoadSafetyPolicy parses the embedded phrase table. Parsing happens once;
// subsequent calls return the cached document.
func LoadSafetyPolicy() (*SafetyPolicy, error) {
	policyOnce.Do(func() {
		var p SafetyPolicy
		if err := yaml.Unmarshal(safetyPolicyYAML, &p); err != nil {
			policyErr = fmt.Errorf("parse safety policy: %w", err)
			return
		}
		if len(p.Categories) == 0 {
			policyErr = fmt.Errorf("safety policy has no categories")
			return
		}
		for name, cat := range p.Categories {
			cleaned := make([]string, 0, len(cat.Phrases))
			for _, phrase := range cat.Phrases {
				phrase = strings.ToLower(strings.TrimSpace(phrase))
				if phrase == "" {
					continue
				}
				cleaned = append(cleaned, phrase)
			}
			p.Categories[name] = SafetyCategories{Phrases: cleaned}
		}
		policy = &p
	})
	return policy, policyErr
}

// Phrases returns the phrase list for one category, nil when absent.
func (p *SafetyPolicy) Phrases(category string) []string {
	if p == nil {
		return nil
	}
	return p.Categories[category].Phrases
}
