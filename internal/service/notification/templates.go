package notification

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

//go:embed templates.yaml
var defaultCatalogYAML []byte

// Template: one notification message shape. Placeholders use {name} syntax;
// Required lists the variables render refuses to proceed without.
type Template struct {
	Title    string   `yaml:"title"`
	Body     string   `yaml:"body"`
	Required []string `yaml:"required"`
}

// Catalog maps template types to templates.
type Catalog map[domain.TemplateType]Template

// LoadCatalog reads the catalog from path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (Catalog, error) {
	raw := defaultCatalogYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template catalog: %w", err)
		}
		raw = data
	}

	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("template catalog is empty")
	}
	return catalog, nil
}

// Render produces the title and body for a template type, substituting every
// {placeholder} from variables. Unknown types and missing required variables
// are validation errors.
func (c Catalog) Render(templateType domain.TemplateType, variables map[string]string) (title, body string, err error) {
	tmpl, ok := c[templateType]
	if !ok {
		return "", "", apperrors.NewValidationError("templateType", "unknown template type: "+string(templateType))
	}
	for _, name := range tmpl.Required {
		if _, present := variables[name]; !present {
			return "", "", apperrors.NewValidationError(name, "missing required template variable")
		}
	}
	return substitute(tmpl.Title, variables), substitute(tmpl.Body, variables), nil
}

func substitute(text string, variables map[string]string) string {
	for name, value := range variables {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}
