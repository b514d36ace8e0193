package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"status":"Compliant"}`, `{"status":"Compliant"}`},
		{"fenced json", "Here you go:\n```json\n{\"status\": \"Compliant\"}\n```", `{"status": "Compliant"}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Verdict follows {"status":"Error"} thanks`, `{"status":"Error"}`},
		{"trailing comma", `{"evidence_pages":[1,2,],}`, `{"evidence_pages":[1,2]}`},
		{"no object", "I cannot determine compliance.", ""},
		{"reversed braces", "} nothing {", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
