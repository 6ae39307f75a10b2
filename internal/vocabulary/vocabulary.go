// Package vocabulary holds the categorised label sets used for zero-shot tagging.
package vocabulary

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is configured in init and only read afterwards.
var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("not_blank", validateNotBlank); err != nil {
		slog.Error("failed to register not_blank validator", "error", err)
	}
}

// Category is a named list of candidate labels. One best match is picked per category.
type Category struct {
	Name   string   `yaml:"name" json:"name" validate:"not_blank"`
	Labels []string `yaml:"labels" json:"labels" validate:"required,min=1,dive,not_blank"`
}

// Vocabulary is an ordered list of categories. Order matters for tie-breaking between equal scores.
type Vocabulary struct {
	Categories []Category `validate:"required,min=1,dive"`
}

// Default returns the built-in design-oriented vocabulary.
func Default() *Vocabulary {
	return &Vocabulary{Categories: []Category{
		{Name: "design_discipline", Labels: []string{
			"graphic design", "web design", "mobile UI design", "product design", "illustration",
			"poster design", "logo design", "typography design", "branding", "icon design",
		}},
		{Name: "ui_pattern", Labels: []string{
			"dashboard UI", "app onboarding flow", "login screen", "signup form", "hero section",
			"call to action button", "navigation menu", "user profile page", "e-commerce product page",
			"data table", "form elements", "search bar",
		}},
		{Name: "content_style", Labels: []string{
			"photograph", "3D render", "vector art", "pixel art", "line art", "doodle",
			"minimalist", "brutalist", "retro", "futuristic", "dark mode", "light mode",
			"color palette", "design system components", "wireframe", "screenshot",
		}},
		{Name: "subject", Labels: []string{
			"person", "building", "animal", "plant", "food", "technology", "nature", "vehicle",
		}},
		{Name: "mood", Labels: []string{
			"vibrant", "calm", "energetic", "serene", "professional", "playful",
			"luxurious", "nostalgic", "modern", "corporate", "artistic",
		}},
	}}
}

// UnmarshalYAML decodes a mapping of category name to label list, keeping document order.
func (v *Vocabulary) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.New("vocabulary must be a mapping of category to labels")
	}

	categories := make([]Category, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		var labels []string
		if err := node.Content[i+1].Decode(&labels); err != nil {
			return fmt.Errorf("category %q: %w", node.Content[i].Value, err)
		}

		categories = append(categories, Category{Name: node.Content[i].Value, Labels: labels})
	}

	v.Categories = categories

	return nil
}

// Parse decodes and validates a YAML vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}

	return &v, nil
}

// Load reads a vocabulary file. An empty path returns the default vocabulary.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	return Parse(data)
}

// Validate rejects empty vocabularies, empty categories and blank names or labels.
func (v *Vocabulary) Validate() error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("validate vocabulary: %w", err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, describe(fe))
	}

	return fmt.Errorf("invalid vocabulary: %s", strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Vocabulary.")

	switch fe.Tag() {
	case "required", "min":
		return field + " must not be empty"
	case "not_blank":
		return field + " must not be blank"
	default:
		return field + " is invalid"
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Labels returns every label across categories in order, without duplicates.
func (v *Vocabulary) Labels() []string {
	seen := make(map[string]bool)

	var out []string

	for _, c := range v.Categories {
		for _, l := range c.Labels {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}

	return out
}
