package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the reference data review forms and cycles are built from.
type Catalog struct {
	CycleTypes      []string    `yaml:"cycleTypes" json:"cycleTypes"`
	AssessmentTypes []string    `yaml:"assessmentTypes" json:"assessmentTypes"`
	RatingScale     RatingScale `yaml:"ratingScale" json:"ratingScale"`
	Categories      []Category  `yaml:"categories" json:"categories"`
	Reviewers       []Reviewer  `yaml:"reviewers" json:"reviewers"`
}

type RatingScale struct {
	Min    float64           `yaml:"min" json:"min"`
	Max    float64           `yaml:"max" json:"max"`
	Step   float64           `yaml:"step" json:"step"`
	Labels map[string]string `yaml:"labels" json:"labels,omitempty"`
}

type Category struct {
	Name      string   `yaml:"name" json:"name"`
	Questions []string `yaml:"questions" json:"questions"`
}

type Reviewer struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Department string `yaml:"department" json:"department,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.CycleTypes) == 0 {
		return fmt.Errorf("catalog needs at least one cycle type")
	}
	scale := c.RatingScale
	if scale.Min == 0 && scale.Max == 0 {
		c.RatingScale.Min, c.RatingScale.Max = 1, 5
	} else if scale.Min < 1 || scale.Max > 5 || scale.Min >= scale.Max {
		return fmt.Errorf("rating scale must lie within 1..5, got %v..%v", scale.Min, scale.Max)
	}
	if scale.Step < 0 || scale.Step > 1 {
		return fmt.Errorf("rating step must be between 0 and 1, got %v", scale.Step)
	}
	seen := map[string]bool{}
	for _, category := range c.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return fmt.Errorf("category name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
	}
	for _, reviewer := range c.Reviewers {
		if strings.TrimSpace(reviewer.ID) == "" {
			return fmt.Errorf("reviewer id is required")
		}
	}
	return nil
}

func (c *Catalog) HasCycleType(name string) bool {
	if c == nil {
		return true
	}
	for _, candidate := range c.CycleTypes {
		if strings.EqualFold(candidate, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// Reviewer looks up a reviewer by id. An empty directory knows every reviewer.
func (c *Catalog) Reviewer(id string) (Reviewer, bool) {
	if c == nil || len(c.Reviewers) == 0 {
		return Reviewer{ID: id}, true
	}
	for _, reviewer := range c.Reviewers {
		if reviewer.ID == id {
			return reviewer, true
		}
	}
	return Reviewer{}, false
}

// Step is the rating entry granularity, zero when the catalog leaves it open.
func (c *Catalog) Step() float64 {
	if c == nil {
		return 0
	}
	return c.RatingScale.Step
}

// Bounds is the allowed rating range, 1..5 when no catalog is loaded.
func (c *Catalog) Bounds() (float64, float64) {
	if c == nil {
		return 1, 5
	}
	return c.RatingScale.Min, c.RatingScale.Max
}
