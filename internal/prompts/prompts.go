// Package prompts holds the embedded LLM prompt templates and the
// placeholder substitution helper. Each template declares the placeholders it
// must contain; Load fails fast when a template and its declaration drift.
package prompts

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// Template names.
const (
	JDEnrich           = "jd_enrich"
	CVEnrich           = "cv_enrich"
	CVRanking          = "cv_ranking"
	CandidateQuestions = "candidate_questions"
	CVParse            = "cv_parse"
	JDKeywords         = "jd_keywords"
)

// required lists the placeholder slots each template must contain.
var required = map[string][]string{
	JDEnrich:           nil,
	CVEnrich:           nil,
	CVRanking:          {"{{JD_TEXT}}", "{{CV_TEXT}}", "{{CV_ID}}"},
	CandidateQuestions: {"{{JD_TEXT}}", "{{CV_TEXT}}", "{{CANDIDATE_NAME_OR_ID}}"},
	CVParse:            nil,
	JDKeywords:         {"{{JD_TEXT}}"},
}

// Library is the validated set of prompt templates.
type Library struct {
	templates map[string]string
}

// Load reads every embedded template and verifies its declared placeholders
// are present. A template missing a slot is a deployment mistake, not a
// runtime condition, so Load returns an error instead of degrading.
func Load() (*Library, error) {
	lib := &Library{templates: make(map[string]string, len(required))}

	for name, slots := range required {
		data, err := templateFS.ReadFile("templates/" + name + ".md")
		if err != nil {
			return nil, fmt.Errorf("reading prompt template %q: %w", name, err)
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt template %q is empty", name)
		}
		for _, slot := range slots {
			if !strings.Contains(text, slot) {
				return nil, fmt.Errorf("prompt template %q is missing placeholder %s", name, slot)
			}
		}
		lib.templates[name] = text
	}

	return lib, nil
}

// Render substitutes the given placeholder values into the named template.
// Every declared placeholder of the template must be supplied.
func (l *Library) Render(name string, values map[string]string) (string, error) {
	text, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	supplied := make(map[string]bool, len(values))
	for k, v := range values {
		slot := "{{" + k + "}}"
		supplied[slot] = true
		text = strings.ReplaceAll(text, slot, v)
	}

	for _, slot := range required[name] {
		if !supplied[slot] {
			return "", fmt.Errorf("prompt template %q: no value supplied for %s", name, slot)
		}
	}

	return text, nil
}

// Text returns the raw template body (for templates with no placeholders,
// like the chunk-enrichment instructions that precede document content).
func (l *Library) Text(name string) (string, error) {
	text, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return text, nil
}
