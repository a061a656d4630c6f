package rules

import (
	"fmt"

	"example.com/tripleclaim/internal/config"
	"go.uber.org/zap"
)

// Rule is a matching predicate over item ids.
type Rule interface {
	IsMatch(items []int) bool
	HasAnyMatch(items []int, minCount int) bool
}

// FromConfig returns the Lua rule named by cfg.RulesScript, or the built-in
// feature rule sized to the configured universe. The returned func releases
// the rule.
func FromConfig(cfg config.Game, logger *zap.Logger) (Rule, func(), error) {
	if cfg.RulesScript != "" {
		s, err := LoadScript(cfg.RulesScript, cfg.FeatureSize, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	if cfg.FeatureCount < 1 {
		return nil, nil, fmt.Errorf("feature count %d must be positive", cfg.FeatureCount)
	}
	f := NewFeatures(cfg.FeatureSize, cfg.FeatureCount)
	if f.Universe() != cfg.UniverseSize {
		return nil, nil, fmt.Errorf("universe size %d must equal feature size %d to the power of feature count %d",
			cfg.UniverseSize, cfg.FeatureSize, cfg.FeatureCount)
	}
	return f, func() {}, nil
}
