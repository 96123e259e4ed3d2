package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Alert {{.EventLabel}}]
Equipment: {{.Equipment}}
Site: {{.Site}}
Rule: {{.Rule}}
Trigger Value: {{.TriggerValue}}
Start Time: {{.StartTime}}
Current Status: {{.Status}}
Severity: {{.Severity}}
{{- if .Level }}
Escalation Level: {{.Level}}
{{- end }}
{{- if .Roles }}
Notify: {{.Roles}}
{{- end }}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Equipment    string
	Site         string
	Rule         string
	RuleID       string
	TriggerValue string
	StartTime    string
	Status       string
	StatusCode   string
	Severity     string
	Suggestion   string
	Event        string
	EventLabel   string
	Level        int
	Roles        string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
