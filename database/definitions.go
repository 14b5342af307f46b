package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steadhac/finbot-ctf/models"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}[a-z0-9]$`)

// ChallengeDefinition is the on-disk YAML shape of a challenge
type ChallengeDefinition struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	Category      string         `yaml:"category"`
	Subcategory   *string        `yaml:"subcategory"`
	Difficulty    string         `yaml:"difficulty"`
	Points        int            `yaml:"points"`
	ImageURL      *string        `yaml:"image_url"`
	Verifier      VerifierSpec   `yaml:"verifier"`
	Hints         []HintSpec     `yaml:"hints"`
	Prerequisites []string       `yaml:"prerequisites"`
	Resources     []ResourceSpec `yaml:"resources"`
	OrderIndex    int            `yaml:"order_index"`
	IsActive      *bool          `yaml:"is_active"`
}

type VerifierSpec struct {
	Class  string         `yaml:"class"`
	Config map[string]any `yaml:"config"`
}

type HintSpec struct {
	Cost int    `yaml:"cost"`
	Text string `yaml:"text"`
}

type ResourceSpec struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// BadgeDefinition is the on-disk YAML shape of a badge
type BadgeDefinition struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Category    string        `yaml:"category"`
	IconURL     *string       `yaml:"icon_url"`
	Rarity      string        `yaml:"rarity"`
	Points      int           `yaml:"points"`
	Criterion   CriterionSpec `yaml:"criterion"`
	IsSecret    bool          `yaml:"is_secret"`
	IsActive    *bool         `yaml:"is_active"`
}

type CriterionSpec struct {
	Class  string         `yaml:"class"`
	Config map[string]any `yaml:"config"`
}

// Validate checks the structural constraints of a challenge definition
func (d *ChallengeDefinition) Validate() error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("invalid challenge id %q", d.ID)
	}
	if d.Title == "" {
		return fmt.Errorf("challenge %s: title is required", d.ID)
	}
	if d.Points < 0 || d.Points > 10000 {
		return fmt.Errorf("challenge %s: points out of range: %d", d.ID, d.Points)
	}
	if d.Verifier.Class == "" {
		return fmt.Errorf("challenge %s: verifier class is required", d.ID)
	}
	for i, hint := range d.Hints {
		if hint.Cost < 0 {
			return fmt.Errorf("challenge %s: hint %d has negative cost", d.ID, i)
		}
		if hint.Text == "" {
			return fmt.Errorf("challenge %s: hint %d has no text", d.ID, i)
		}
	}
	return nil
}

// Validate checks the structural constraints of a badge definition
func (d *BadgeDefinition) Validate() error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("invalid badge id %q", d.ID)
	}
	if d.Title == "" {
		return fmt.Errorf("badge %s: title is required", d.ID)
	}
	if d.Points < 0 || d.Points > 10000 {
		return fmt.Errorf("badge %s: points out of range: %d", d.ID, d.Points)
	}
	if d.Criterion.Class == "" {
		return fmt.Errorf("badge %s: criterion class is required", d.ID)
	}
	switch d.Rarity {
	case "", models.RarityCommon, models.RarityRare, models.RarityEpic, models.RarityLegendary:
	default:
		return fmt.Errorf("badge %s: unknown rarity %q", d.ID, d.Rarity)
	}
	return nil
}

// ToModel converts a challenge definition into its database row
func (d *ChallengeDefinition) ToModel() (*models.Challenge, error) {
	hints := make([]models.Hint, 0, len(d.Hints))
	for _, h := range d.Hints {
		hints = append(hints, models.Hint{Cost: h.Cost, Text: h.Text})
	}
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return nil, err
	}

	prereqs := d.Prerequisites
	if prereqs == nil {
		prereqs = []string{}
	}
	prereqJSON, err := json.Marshal(prereqs)
	if err != nil {
		return nil, err
	}

	resources := make([]models.Resource, 0, len(d.Resources))
	for _, r := range d.Resources {
		resources = append(resources, models.Resource{Title: r.Title, URL: r.URL})
	}
	resourceJSON, err := json.Marshal(resources)
	if err != nil {
		return nil, err
	}

	var verifierConfig *string
	if d.Verifier.Config != nil {
		raw, err := json.Marshal(d.Verifier.Config)
		if err != nil {
			return nil, err
		}
		s := string(raw)
		verifierConfig = &s
	}

	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}

	return &models.Challenge{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Category:       d.Category,
		Subcategory:    d.Subcategory,
		Difficulty:     d.Difficulty,
		Points:         d.Points,
		ImageURL:       d.ImageURL,
		VerifierClass:  d.Verifier.Class,
		VerifierConfig: verifierConfig,
		Hints:          string(hintsJSON),
		Prerequisites:  string(prereqJSON),
		Resources:      string(resourceJSON),
		OrderIndex:     d.OrderIndex,
		IsActive:       active,
	}, nil
}

// ToModel converts a badge definition into its database row
func (d *BadgeDefinition) ToModel() (*models.Badge, error) {
	var criterionConfig *string
	if d.Criterion.Config != nil {
		raw, err := json.Marshal(d.Criterion.Config)
		if err != nil {
			return nil, err
		}
		s := string(raw)
		criterionConfig = &s
	}

	rarity := d.Rarity
	if rarity == "" {
		rarity = models.RarityCommon
	}

	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}

	return &models.Badge{
		ID:              d.ID,
		Title:           d.Title,
		Description:     d.Description,
		Category:        d.Category,
		IconURL:         d.IconURL,
		Rarity:          rarity,
		Points:          d.Points,
		CriterionClass:  d.Criterion.Class,
		CriterionConfig: criterionConfig,
		IsSecret:        d.IsSecret,
		IsActive:        active,
	}, nil
}

// LoadChallengeDefinitions reads every YAML file under dir
func LoadChallengeDefinitions(dir string) ([]ChallengeDefinition, error) {
	files, err := listYAMLFiles(dir)
	if err != nil {
		return nil, err
	}

	var defs []ChallengeDefinition
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		var def ChallengeDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadBadgeDefinitions reads every YAML file under dir
func LoadBadgeDefinitions(dir string) ([]BadgeDefinition, error) {
	files, err := listYAMLFiles(dir)
	if err != nil {
		return nil, err
	}

	var defs []BadgeDefinition
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		var def BadgeDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func listYAMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read definitions dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}
