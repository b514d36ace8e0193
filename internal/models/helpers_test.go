package models

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already a slug", "srp-core", "srp-core"},
		{"uppercase and spaces", "Ship Recycling Plan", "ship-recycling-plan"},
		{"underscores", "mepc_269_68", "mepc-269-68"},
		{"punctuation stripped", "MEPC.196(62), Annex 4", "mepc19662-annex-4"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"consecutive spaces", "hong  kong", "hong--kong"},
		{"unicode stripped", "résumé", "rsum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
