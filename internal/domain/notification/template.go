package notification

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in template ids.
const (
	TemplateSOSAlert        = "sos-alert"
	TemplateSOSNotification = "sos-notification"
)

// Template defines a reusable title/message pair with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TemplateEngine renders the built-in templates. It is read-only after
// construction and safe for concurrent use.
type TemplateEngine struct {
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateSOSAlert,
			Title:   "SOS Alert from {{patient_name}}",
			Message: "{{patient_name}} ({{patient_email}}) has triggered an emergency SOS alert.",
		},
		{
			ID:      TemplateSOSNotification,
			Title:   "🚨 SOS Alert from {{patient_name}}",
			Message: "{{patient_name}} has triggered an emergency SOS alert. Immediate attention required!",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Render looks up a template by ID and performs {{key}} replacement in a
// single pass, so substituted values are never expanded again. Keys present
// in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, message string, err error) {
	t, ok := e.templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Title), r.Replace(t.Message), nil
}
