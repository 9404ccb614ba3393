package normalize

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk format for extra title rules.
//
//	rules:
//	  - name: spotify-track
//	    pattern: '\s+-\s+Spotify$'
type RulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads extra rules from a YAML file.
// A missing file is not an error and yields no rules.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f RulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return f.Rules, nil
}

// NewFromFile builds a normalizer from DefaultRules followed by the rules in path.
func NewFromFile(path string) (*Normalizer, error) {
	extra, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(append(DefaultRules(), extra...)...)
}
