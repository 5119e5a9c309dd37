package synthesis

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultLanguage is the target language when none is configured
const DefaultLanguage = "TypeScript"

// bodySeparator is the blank line placed between consecutive bodies
const bodySeparator = "\n\n"

var promptTemplate = template.Must(template.New("prompt").Funcs(template.FuncMap{"join": strings.Join}).Parse(strings.TrimSpace(`
Generate a {{.Language}} function that serves as a handler for multiple webhook events. The function should accept a request body containing different webhooks.

The function should handle the following webhook events with example payloads:

"""
{{.Bodies}}
"""
{{- if .EventTypes}}

Event types present in the examples: {{join .EventTypes ", "}}.
{{- end}}

The generated code should include:

- A main function that takes the webhooks request body as input.
- {{.Validators}} for each event type.
- Logic to handle each event based on the validated data.
- Appropriate error handling for invalid payloads.
`)))

// validators names the idiomatic validation approach for well known languages
var validators = map[string]string{
	"typescript": "Zod schemas",
	"javascript": "Zod schemas",
	"python":     "Pydantic models",
	"go":         "Struct types with explicit validation functions",
}

type promptData struct {
	Language   string
	Validators string
	Bodies     string
	EventTypes []string
}

// BuildPrompt renders the instruction for language around the given bodies.
// The output only depends on its arguments.
func BuildPrompt(language string, bodies []string) (string, error) {
	if language == "" {
		language = DefaultLanguage
	}
	v, ok := validators[strings.ToLower(language)]
	if !ok {
		v = "Structural validators"
	}

	var sb strings.Builder
	err := promptTemplate.Execute(&sb, promptData{
		Language:   language,
		Validators: v,
		Bodies:     strings.Join(bodies, bodySeparator),
		EventTypes: EventTypes(bodies),
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}
