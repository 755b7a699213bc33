package analyze

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LeadQuality tiers how commercially attractive a property is, derived from
// paved area and pavement condition.
type LeadQuality string

const (
	LeadLow      LeadQuality = "low"
	LeadStandard LeadQuality = "standard"
	LeadHigh     LeadQuality = "high"
	LeadPremium  LeadQuality = "premium"
)

// LeadTier is one row of the classification table: a property qualifies
// when its paved area is at least MinPavedSqft and its condition score is
// at most MaxConditionScore (big lot, rough pavement = strong lead).
type LeadTier struct {
	Quality           LeadQuality `yaml:"quality"`
	MinPavedSqft      float64     `yaml:"min_paved_sqft"`
	MaxConditionScore float64     `yaml:"max_condition_score"`
}

// LeadConfig is the ordered threshold table. Tiers are evaluated first to
// last; the first match wins, and no match means LeadLow.
type LeadConfig struct {
	Tiers []LeadTier `yaml:"tiers"`
}

// DefaultLeadConfig returns the standard tier table.
func DefaultLeadConfig() *LeadConfig {
	return &LeadConfig{
		Tiers: []LeadTier{
			{Quality: LeadPremium, MinPavedSqft: 50000, MaxConditionScore: 40},
			{Quality: LeadHigh, MinPavedSqft: 25000, MaxConditionScore: 50},
			{Quality: LeadStandard, MinPavedSqft: 10000, MaxConditionScore: 60},
		},
	}
}

// LoadLeadConfig reads a tier table from a YAML file.
func LoadLeadConfig(path string) (*LeadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: read lead config %s", path)
	}

	var wrapper struct {
		LeadQuality LeadConfig `yaml:"lead_quality"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "analyze: parse lead config")
	}
	if len(wrapper.LeadQuality.Tiers) == 0 {
		return nil, eris.Errorf("analyze: lead config %s has no tiers", path)
	}
	return &wrapper.LeadQuality, nil
}

// Classify returns the lead quality for a property's total paved square
// footage and condition score.
func (c *LeadConfig) Classify(pavedSqft, conditionScore float64) LeadQuality {
	for _, tier := range c.Tiers {
		if pavedSqft >= tier.MinPavedSqft && conditionScore <= tier.MaxConditionScore {
			return tier.Quality
		}
	}
	return LeadLow
}
