package analysis

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/normalize.md
	normalizeTemplate string
	//go:embed prompts/extract.md
	extractTemplate string
	//go:embed prompts/match.md
	matchTemplate string
	//go:embed prompts/feedback.md
	feedbackTemplate string
)

const noneValue = "none"

// renderPrompt fills {{KEY}} placeholders in a single pass, so user text that
// happens to contain a placeholder is never expanded. Values are embedded as
// given; only blank values are replaced with "none".
func renderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			value = noneValue
		}
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
