package llm

import (
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches an object inside a fenced code block.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls the JSON object out of a model response. It prefers a
// fenced code block and otherwise takes the span from the first '{' to the
// last '}'. Trailing commas are removed. It returns "" when no object is
// present.
func ExtractJSON(content string) string {
	var raw string
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return ""
		}
		raw = content[start : end+1]
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
