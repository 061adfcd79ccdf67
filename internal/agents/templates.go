package agents

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/acquire-cli/internal/model"
)

// TemplateRegistry produces a canned question for an uncertainty when the
// question generator cannot, or should not, call the model. Templates are
// matched by field first, then by uncertainty type, then by a generic
// fallback. "{field}" in a template is replaced with the uncertainty's field.
type TemplateRegistry struct {
	byField map[string]string
	byType  map[string]string
}

// defaultFieldTemplates covers the fields that come up constantly in
// marketplace listings.
var defaultFieldTemplates = map[string]string{
	"financials": "Can you provide detailed financial statements for the past 12-24 months, including revenue, expenses, and profit/loss?",
	"customers":  "Can you provide details about customer count, churn rate, and any large customer concentrations?",
	"risks":      "What are the main business risks or dependencies that could impact operations?",
	"operations": "How many hours per week does the current owner spend on the business?",
	"technology": "Do you own the code, data, and infrastructure, or are there any leased/cloud dependencies?",
	"product":    "What is the core product offering and target market for this business?",
	"growth":     "What are the primary growth channels and recent growth trends?",
	"seller":     "What is the seller's motivation for selling and timeline for transition?",
}

var defaultTypeTemplates = map[string]string{
	"missing_financials": "Can you provide detailed financial statements for the past 12-24 months, including revenue, expenses, and profit/loss?",
	"missing_domain":     "Can you provide details about the {field} aspects of the business?",
	"assumed_value":      "Regarding the {field} assumption, can you provide the actual details?",
	"requires_followup":  "Can you clarify the uncertainty around {field}?",
	"contradictory_data": "The listing appears inconsistent about {field}. Which figure is correct?",
}

// DefaultTemplates returns the built-in registry.
func DefaultTemplates() *TemplateRegistry {
	return &TemplateRegistry{
		byField: defaultFieldTemplates,
		byType:  defaultTypeTemplates,
	}
}

// LoadTemplates reads a template registry from a YAML file and merges it over
// the defaults, so a deployment can retune question wording without a
// rebuild. An empty path returns the defaults.
func LoadTemplates(path string) (*TemplateRegistry, error) {
	reg := DefaultTemplates()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "agents: read templates %s", path)
	}

	// The YAML has a top-level "question_templates" key
	var wrapper struct {
		QuestionTemplates struct {
			Fields map[string]string `yaml:"fields"`
			Types  map[string]string `yaml:"types"`
		} `yaml:"question_templates"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "agents: parse templates")
	}

	byField := make(map[string]string, len(defaultFieldTemplates))
	for k, v := range defaultFieldTemplates {
		byField[k] = v
	}
	for k, v := range wrapper.QuestionTemplates.Fields {
		byField[k] = v
	}
	byType := make(map[string]string, len(defaultTypeTemplates))
	for k, v := range defaultTypeTemplates {
		byType[k] = v
	}
	for k, v := range wrapper.QuestionTemplates.Types {
		byType[k] = v
	}

	return &TemplateRegistry{byField: byField, byType: byType}, nil
}

// QuestionFor renders the template question for one uncertainty.
func (t *TemplateRegistry) QuestionFor(u model.Uncertainty) string {
	if tmpl, ok := t.byField[u.Field]; ok {
		return render(tmpl, u.Field)
	}
	if tmpl, ok := t.byType[u.Type]; ok {
		return render(tmpl, u.Field)
	}
	return fmt.Sprintf("Can you clarify the uncertainty regarding %s?", u.Field)
}

func render(tmpl, field string) string {
	return strings.ReplaceAll(tmpl, "{field}", field)
}
