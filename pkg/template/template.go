// Package template renders step content (message bodies, email subjects,
// prompts) against the run context using Go text/template syntax, e.g.
// "Hi {{ .lead.name }}".
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/engageflow/pkg/models"
)

const noValue = "<no value>"

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"default": func(fallback, value any) any {
		if value == nil {
			return fallback
		}

		if s, ok := value.(string); ok && s == "" {
			return fallback
		}

		return value
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}

		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// Render executes templateStr with data. Missing keys render as empty text.
func Render(templateStr string, data any) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}

	tmpl, err := template.New("step").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.ReplaceAll(buf.String(), noValue, ""), nil
}

// RenderContext renders templateStr against a run context.
func RenderContext(templateStr string, rc models.Context) (string, error) {
	return Render(templateStr, map[string]any(rc))
}

// Validate parses templateStr without executing it.
func Validate(templateStr string) error {
	if !strings.Contains(templateStr, "{{") {
		return nil
	}

	_, err := template.New("step").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return nil
}
