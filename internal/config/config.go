// Package config loads the lookup policy file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/biomonlab/chemtable/internal/hmdb"
	"github.com/biomonlab/chemtable/internal/pubmed"
)

type HMDB struct {
	BaseURL string `yaml:"base_url"`
	// StatusLabels and StatusMinSimilarity drive the fuzzy canonicalization
	// of scraped status labels.
	StatusLabels        []string `yaml:"status_labels"`
	StatusMinSimilarity float64  `yaml:"status_min_similarity"`
}

type PubMed struct {
	BaseURL string `yaml:"base_url"`
	// SearchExpr is appended to every quoted name query, e.g.
	// "+AND+(human OR blood OR urine)".
	SearchExpr string `yaml:"search_expr"`
}

type Config struct {
	HMDB   HMDB   `yaml:"hmdb"`
	PubMed PubMed `yaml:"pubmed"`
}

func Default() Config {
	policy := hmdb.DefaultStatusPolicy()
	return Config{
		HMDB: HMDB{
			BaseURL:             hmdb.DefaultBaseURL,
			StatusLabels:        policy.Labels,
			StatusMinSimilarity: policy.MinSimilarity,
		},
		PubMed: PubMed{
			BaseURL: pubmed.DefaultBaseURL,
		},
	}
}

// Load reads a YAML policy file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if cfg.HMDB.StatusMinSimilarity < 0 || cfg.HMDB.StatusMinSimilarity > 1 {
		return Config{}, fmt.Errorf("status_min_similarity %v out of range [0,1]", cfg.HMDB.StatusMinSimilarity)
	}
	return cfg, nil
}

// StatusPolicy builds the hmdb policy from the loaded config.
func (c Config) StatusPolicy() hmdb.StatusPolicy {
	return hmdb.StatusPolicy{
		Labels:        c.HMDB.StatusLabels,
		MinSimilarity: c.HMDB.StatusMinSimilarity,
	}
}
