package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquire-cli/internal/model"
)

func TestDefaultTemplatesFieldMatch(t *testing.T) {
	reg := DefaultTemplates()

	q := reg.QuestionFor(model.Uncertainty{Type: "missing_domain", Field: "financials", Severity: model.SeverityHigh})
	assert.Contains(t, q, "financial statements")
}

func TestDefaultTemplatesTypeMatch(t *testing.T) {
	reg := DefaultTemplates()

	q := reg.QuestionFor(model.Uncertainty{Type: "assumed_value", Field: "growth.monthly_growth_rate_percent", Severity: model.SeverityHigh})
	assert.Equal(t, "Regarding the growth.monthly_growth_rate_percent assumption, can you provide the actual details?", q)
}

func TestDefaultTemplatesFallback(t *testing.T) {
	reg := DefaultTemplates()

	q := reg.QuestionFor(model.Uncertainty{Type: "something_new", Field: "misc.detail", Severity: model.SeverityLow})
	assert.Equal(t, "Can you clarify the uncertainty regarding misc.detail?", q)
}

func TestLoadTemplatesEmptyPath(t *testing.T) {
	reg, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Contains(t, reg.QuestionFor(model.Uncertainty{Field: "seller"}), "motivation")
}

func TestLoadTemplatesMissingFile(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadTemplatesMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	body := `question_templates:
  fields:
    financials: "Send us your P&L for the last two years."
    inventory: "What is the current inventory value?"
  types:
    contradictory_data: "We saw conflicting numbers for {field}. Which is right?"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	reg, err := LoadTemplates(path)
	require.NoError(t, err)

	// Overridden field.
	assert.Equal(t, "Send us your P&L for the last two years.",
		reg.QuestionFor(model.Uncertainty{Type: "missing_domain", Field: "financials"}))
	// New field.
	assert.Equal(t, "What is the current inventory value?",
		reg.QuestionFor(model.Uncertainty{Type: "missing_domain", Field: "inventory"}))
	// Overridden type.
	assert.Equal(t, "We saw conflicting numbers for customers.total_customers. Which is right?",
		reg.QuestionFor(model.Uncertainty{Type: "contradictory_data", Field: "customers.total_customers"}))
	// Untouched default survives the merge.
	assert.Contains(t, reg.QuestionFor(model.Uncertainty{Type: "missing_domain", Field: "customers"}), "churn rate")
}

func TestLoadTemplatesMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("question_templates: [not, a, map"), 0o644))

	_, err := LoadTemplates(path)
	require.Error(t, err)
}
