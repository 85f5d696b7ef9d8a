package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// yamlRecipe mirrors the on-disk recipe format. Field names follow the
// backend column names so a recipe file reads like the schema.
type yamlRecipe struct {
	ID              string     `yaml:"id"`
	Title           string     `yaml:"title"`
	Description     string     `yaml:"description"`
	MainImageURL    string     `yaml:"main_image_url"`
	PrepTimeMinutes int        `yaml:"prep_time_minutes"`
	CookTimeMinutes int        `yaml:"cook_time_minutes"`
	BasePax         int        `yaml:"base_pax"`
	Cuisine         string     `yaml:"cuisine"`
	Steps           []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	ID                   string           `yaml:"id"`
	OrderIndex           int              `yaml:"order_index"`
	ShortText            string           `yaml:"short_text"`
	DetailedDescription  string           `yaml:"detailed_description"`
	MediaURL             string           `yaml:"media_url"`
	EstimatedDurationSec int              `yaml:"estimated_duration_sec"`
	Ingredients          []yamlIngredient `yaml:"ingredients"`
	Equipment            []yamlEquipment  `yaml:"equipment"`
}

type yamlIngredient struct {
	Name           string  `yaml:"name"`
	PlaceholderKey string  `yaml:"placeholder_key"`
	Amount         float64 `yaml:"amount"`
	Unit           string  `yaml:"unit"`
}

type yamlEquipment struct {
	Name           string `yaml:"name"`
	PlaceholderKey string `yaml:"placeholder_key"`
}

// Parse decodes a single YAML recipe document.
func Parse(data []byte) (*domain.Recipe, error) {
	var yr yamlRecipe
	if err := yaml.Unmarshal(data, &yr); err != nil {
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}
	if yr.Title == "" {
		return nil, fmt.Errorf("recipe has no title")
	}
	if yr.BasePax <= 0 {
		yr.BasePax = 4
	}

	r := &domain.Recipe{
		ID:              yr.ID,
		Title:           yr.Title,
		Description:     yr.Description,
		MainImageURL:    yr.MainImageURL,
		PrepTimeMinutes: yr.PrepTimeMinutes,
		CookTimeMinutes: yr.CookTimeMinutes,
		BasePax:         yr.BasePax,
		Cuisine:         yr.Cuisine,
	}
	if r.ID == "" {
		r.ID = slugify(yr.Title)
	}

	for i, ys := range yr.Steps {
		step := domain.RecipeStep{
			ID:                   ys.ID,
			OrderIndex:           ys.OrderIndex,
			ShortText:            ys.ShortText,
			DetailedDescription:  ys.DetailedDescription,
			MediaURL:             ys.MediaURL,
			EstimatedDurationSec: ys.EstimatedDurationSec,
		}
		if step.ID == "" {
			step.ID = fmt.Sprintf("%s-step-%d", r.ID, i)
		}
		for _, yi := range ys.Ingredients {
			step.Ingredients = append(step.Ingredients, domain.StepIngredient{
				Name:           yi.Name,
				PlaceholderKey: yi.PlaceholderKey,
				Amount:         yi.Amount,
				OriginalAmount: yi.Amount,
				Unit:           yi.Unit,
			})
		}
		for _, ye := range ys.Equipment {
			step.Equipment = append(step.Equipment, domain.StepEquipment{
				Name:           ye.Name,
				PlaceholderKey: ye.PlaceholderKey,
			})
		}
		r.Steps = append(r.Steps, step)
	}
	return r, nil
}

// LoadDir reads every *.yaml/*.yml file in dir into the source.
// Malformed files are logged and skipped; they never abort the load.
func LoadDir(dir string, src *MemorySource, log *logger.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading recipe dir: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Error("recipe: reading %s: %v", e.Name(), err)
			continue
		}
		r, err := Parse(data)
		if err != nil {
			log.Error("recipe: parsing %s: %v", e.Name(), err)
			continue
		}
		src.Put(r)
		loaded++
	}
	log.Info("loaded %d recipes from %s", loaded, dir)
	return nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
