package pla

import (
	"fmt"
	"strings"
	"text/template"
)

// ScriptParams are the values available to driver script templates.
type ScriptParams struct {
	Input  string
	Output string
}

// RenderDriver renders the optimizer driver script, one command per line.
func RenderDriver(lines []string, params ScriptParams) (string, error) {
	if len(lines) == 0 {
		return "", fmt.Errorf("pla: driver script is empty")
	}
	tmpl, err := template.New("driver").Option("missingkey=error").Parse(strings.Join(lines, "\n") + "\n")
	if err != nil {
		return "", fmt.Errorf("pla: parse driver script: %w", err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, params); err != nil {
		return "", fmt.Errorf("pla: render driver script: %w", err)
	}
	return b.String(), nil
}
