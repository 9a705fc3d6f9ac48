package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Context holds the variables available to templated-case message templates.
type Context struct {
	// CaseName is the declaring case's name.
	CaseName string
	// SourcePath is the file the case was loaded from.
	SourcePath string

	// Vars are the case's declared test data (vars section or CSV row).
	Vars map[string]string
}

// Render resolves template expressions in s using Go text/template syntax:
// {{.CaseName}}, {{.Vars.topic}}. Unresolved variables are an error so that
// placeholder mistakes surface at discovery time, not at scoring time.
// Strings without template delimiters are returned unchanged.
func Render(s string, ctx *Context) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	t, err := template.New("").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}
