// Package section recovers logical sub-tables from heterogeneous report
// layouts. Detection is a finite-state machine driven by a declared
// transition table per entity type, so new entity types are added by
// extending a table, not by new branch logic.
package section

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/verdantiq/esg-cli/internal/model"
)

// Shape mirrors model.DataType for rule declarations.
type Shape = model.DataType

// Rule declares one section of a report: the marker strings that open it,
// the sub-header cells to skip inside it, and how the normalizer should shape
// the extracted metrics.
type Rule struct {
	Tag         string         `yaml:"tag"`
	Markers     []string       `yaml:"markers"`
	HeaderCells []string       `yaml:"header_cells"`
	Category    model.Category `yaml:"category"`
	Shape       Shape          `yaml:"shape"`
	// MetricName fixes the metric name for single_value and summary
	// sections; yearly and list sections derive names from rows.
	MetricName string `yaml:"metric_name,omitempty"`
}

// RuleSet is the full transition table for one entity type.
type RuleSet struct {
	EntityType string `yaml:"entity_type"`
	Rules      []Rule `yaml:"rules"`
}

// rulesFile is the on-disk/embedded YAML shape.
type rulesFile struct {
	RuleSets []RuleSet `yaml:"rule_sets"`
}

//go:embed rules.yaml
var defaultRulesYAML []byte

// Registry holds rule sets keyed by entity type.
type Registry struct {
	byEntityType map[string]*RuleSet
}

// NewRegistry parses rule sets from YAML.
func NewRegistry(yamlData []byte) (*Registry, error) {
	var f rulesFile
	if err := yaml.Unmarshal(yamlData, &f); err != nil {
		return nil, eris.Wrap(err, "section: parse rules yaml")
	}
	if len(f.RuleSets) == 0 {
		return nil, eris.New("section: rules yaml declares no rule sets")
	}

	r := &Registry{byEntityType: make(map[string]*RuleSet, len(f.RuleSets))}
	for i := range f.RuleSets {
		rs := &f.RuleSets[i]
		if rs.EntityType == "" {
			return nil, eris.New("section: rule set missing entity_type")
		}
		for _, rule := range rs.Rules {
			if rule.Tag == "" || len(rule.Markers) == 0 {
				return nil, eris.Errorf("section: rule set %q has rule without tag or markers", rs.EntityType)
			}
			if !rule.Category.Known() {
				return nil, eris.Errorf("section: rule %q references unknown category %q", rule.Tag, rule.Category)
			}
		}
		r.byEntityType[rs.EntityType] = rs
	}
	return r, nil
}

// DefaultRegistry parses the embedded rule tables.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(defaultRulesYAML)
}

// LoadRegistry reads rule tables from a YAML file path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "section: read rules file %s", path)
	}
	return NewRegistry(data)
}

// ForEntityType returns the transition table for an entity type, falling
// back to the "general" table when the type has no dedicated rules.
func (r *Registry) ForEntityType(entityType string) (*RuleSet, error) {
	if rs, ok := r.byEntityType[entityType]; ok {
		return rs, nil
	}
	if rs, ok := r.byEntityType["general"]; ok {
		return rs, nil
	}
	return nil, eris.Errorf("section: no rule set for entity type %q", entityType)
}

// normalizeMarker canonicalizes a cell for marker comparison: lower-cased,
// inner whitespace collapsed.
func normalizeMarker(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
