package analysis

import (
	"fmt"
	"sort"
	"strings"
)

const (
	EnvironmentPrototype  = "prototype"
	EnvironmentProduction = "production"
)

// Stage binds one pipeline operation to a model and its sampling settings.
type Stage struct {
	Model           string  `mapstructure:"model" json:"model"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max-output-tokens" json:"max-output-tokens,omitempty"`
}

// Stages maps every pipeline operation to its Stage.
type Stages struct {
	Normalize Stage `mapstructure:"normalize" json:"normalize"`
	Extract   Stage `mapstructure:"extract" json:"extract"`
	Match     Stage `mapstructure:"match" json:"match"`
	Feedback  Stage `mapstructure:"feedback" json:"feedback"`
}

// EmptyTaxonomyPolicy decides whether a job description without skills is an error.
type EmptyTaxonomyPolicy string

const (
	EmptyTaxonomyAllow  EmptyTaxonomyPolicy = "allow"
	EmptyTaxonomyReject EmptyTaxonomyPolicy = "reject"
)

// Config is injected into the Pipeline at construction time.
type Config struct {
	Stages        Stages
	EmptyTaxonomy EmptyTaxonomyPolicy
	// Feedback enables the optional general feedback stage.
	Feedback bool
	// Sequential disables running normalization and extraction concurrently.
	Sequential   bool
	MaxLogLength int
}

// Validate checks that every load-bearing stage names a model.
func (c Config) Validate() error {
	stages := map[string]Stage{
		"normalize": c.Stages.Normalize,
		"extract":   c.Stages.Extract,
		"match":     c.Stages.Match,
	}
	if c.Feedback {
		stages["feedback"] = c.Stages.Feedback
	}

	for name, stage := range stages {
		if strings.TrimSpace(stage.Model) == "" {
			return fmt.Errorf("model for %s stage is not configured", name)
		}
		if stage.Temperature < 0 || stage.Temperature > 2 {
			return fmt.Errorf("temperature for %s stage must be within [0, 2], got %v", name, stage.Temperature)
		}
	}

	switch c.EmptyTaxonomy {
	case "", EmptyTaxonomyAllow, EmptyTaxonomyReject:
	default:
		return fmt.Errorf("unknown empty taxonomy policy %q (want %q or %q)", c.EmptyTaxonomy, EmptyTaxonomyAllow, EmptyTaxonomyReject)
	}

	return nil
}

// EnvironmentStages returns the built-in stage mapping for a named environment.
func EnvironmentStages(name string) (Stages, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EnvironmentPrototype:
		return Stages{
			Normalize: Stage{Model: "gemini-2.5-flash-lite", Temperature: 0},
			Extract:   Stage{Model: "gemini-2.5-flash-lite", Temperature: 0.2},
			Match:     Stage{Model: "gemini-2.5-flash-lite", Temperature: 0},
			Feedback:  Stage{Model: "gemini-2.5-flash-lite", Temperature: 0.5, MaxOutputTokens: 500},
		}, true
	case EnvironmentProduction:
		return Stages{
			Normalize: Stage{Model: "gemini-2.5-flash", Temperature: 0},
			Extract:   Stage{Model: "gemini-2.5-flash", Temperature: 0.2},
			Match:     Stage{Model: "gemini-2.5-pro", Temperature: 0},
			Feedback:  Stage{Model: "gemini-2.5-pro", Temperature: 0.5, MaxOutputTokens: 2048},
		}, true
	default:
		return Stages{}, false
	}
}

// Environments lists the built-in environment names.
func Environments() []string {
	names := []string{EnvironmentPrototype, EnvironmentProduction}
	sort.Strings(names)
	return names
}
