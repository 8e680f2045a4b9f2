// internal/assistant/prompts.go
package assistant

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"meal-journal/internal/models"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type Prompts struct {
	SystemMessage    string `yaml:"system_message"`
	SavedFoodPrompt  string `yaml:"saved_food_prompt"`
	RecentFoodPrompt string `yaml:"recent_food_prompt"`
	Errors           struct {
		APIKeyMissing string `yaml:"api_key_missing"`
		Text          string `yaml:"text"`
		Voice         string `yaml:"voice"`
		Image         string `yaml:"image"`
		FoodSelection string `yaml:"food_selection"`
	} `yaml:"errors"`
}

func DefaultPrompts() *Prompts {
	p, err := parsePrompts(defaultPrompts)
	if err != nil {
		panic("embedded prompts are invalid: " + err.Error())
	}
	return p
}

// LoadPrompts reads prompts from a YAML file. Keys the file leaves out keep
// their default text.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}

	p := DefaultPrompts()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	return p, nil
}

func parsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FoodPrompt is the extra system instruction used while a picked food is
// being discussed.
func (p *Prompts) FoodPrompt(mode models.FoodMode) string {
	if mode == models.SavedFoodMode {
		return p.SavedFoodPrompt
	}
	return p.RecentFoodPrompt
}
