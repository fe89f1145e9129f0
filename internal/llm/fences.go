package llm

import "strings"

// StripFences removes a markdown code fence wrapping a model response.
// Structured-output models frequently return ```json ... ``` even when asked
// for bare JSON; callers strip before unmarshalling.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		if body, _, found := strings.Cut(after, "```"); found {
			return strings.TrimSpace(body)
		}
		return strings.TrimSpace(after)
	}
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		return strings.Trim(s, "`\n ")
	}
	return s
}
