// Package factors provides the success-factor catalog: the read-only
// library of canonical task templates that projects clone tasks from.
// Each factor carries a stable id which cloned tasks record as their
// source_id.
package factors

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Greg-CLD/stagegate/internal/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Factor is a single canonical task template.
type Factor struct {
	ID       string  `yaml:"id" json:"id"`
	Stage    string  `yaml:"stage" json:"stage"`
	Text     string  `yaml:"text" json:"text"`
	Notes    *string `yaml:"notes,omitempty" json:"notes,omitempty"`
	Priority *string `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Catalog is an immutable, id-indexed set of factors.
type Catalog struct {
	factors []Factor
	byID    map[string]int
}

type catalogFile struct {
	Factors []Factor `yaml:"factors"`
}

// Load returns the built-in catalog, or the file named by
// STAGEGATE_FACTORS_FILE when that is set.
func Load() (*Catalog, error) {
	if path := os.Getenv("STAGEGATE_FACTORS_FILE"); path != "" {
		return LoadFile(path)
	}
	return parse(embeddedCatalog)
}

// LoadFile loads a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read factors file: %w", err)
	}
	catalog, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid factors file %s: %w", path, err)
	}
	return catalog, nil
}

func parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse factors YAML: %w", err)
	}
	if len(file.Factors) == 0 {
		return nil, fmt.Errorf("factors catalog is empty")
	}

	catalog := &Catalog{
		factors: file.Factors,
		byID:    make(map[string]int, len(file.Factors)),
	}
	for i, f := range file.Factors {
		if f.ID == "" {
			return nil, fmt.Errorf("factor %d has no id", i)
		}
		if f.Text == "" {
			return nil, fmt.Errorf("factor %s has no text", f.ID)
		}
		if err := domain.ValidateStage(f.Stage); err != nil {
			return nil, fmt.Errorf("factor %s: %w", f.ID, err)
		}
		if _, exists := catalog.byID[f.ID]; exists {
			return nil, fmt.Errorf("duplicate factor id: %s", f.ID)
		}
		catalog.byID[f.ID] = i
	}

	return catalog, nil
}

// Lookup returns the factor with the given id.
func (c *Catalog) Lookup(id string) (Factor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Factor{}, false
	}
	return c.factors[i], true
}

// All returns every factor in catalog order.
func (c *Catalog) All() []Factor {
	out := make([]Factor, len(c.factors))
	copy(out, c.factors)
	return out
}

// ByStage returns the factors for one stage, in catalog order.
func (c *Catalog) ByStage(stage domain.Stage) []Factor {
	var out []Factor
	for _, f := range c.factors {
		if f.Stage == string(stage) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of factors in the catalog.
func (c *Catalog) Len() int {
	return len(c.factors)
}

// Stages returns the distinct stages present in the catalog, in
// lifecycle order.
func (c *Catalog) Stages() []domain.Stage {
	seen := make(map[domain.Stage]bool)
	for _, f := range c.factors {
		seen[domain.Stage(f.Stage)] = true
	}
	var out []domain.Stage
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Rank() < out[j].Rank()
	})
	return out
}
