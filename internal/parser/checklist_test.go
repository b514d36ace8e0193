package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const srpJSON = `{
  "checklist_name": "Ship Recycling Plan",
  "version": "1.0",
  "output_report_title": "SRP Compliance Report",
  "requirements": [
    {
      "id": "SRP-01",
      "requirement": "The plan identifies the ship recycling facility.",
      "regulation_source": "MEPC.196(62) 3.1",
      "category": "General",
      "severity": "High",
      "expected_fields": ["facility name", "IMO number"],
      "check_type": "presence",
      "search_keywords": ["facility", "yard"]
    },
    {
      "id": "SRP-02",
      "requirement": "The plan includes the inventory of hazardous materials.",
      "regulation_source": "MEPC.196(62) 3.2",
      "category": "Hazmat",
      "severity": "Critical",
      "expected_fields": ["IHM"],
      "check_type": "presence",
      "search_keywords": ["IHM", "hazardous"]
    }
  ]
}`

const safetyYAML = `checklist_name: Worker Safety
version: "2"
requirements:
  - id: SAF-01
    requirement: Safe-for-entry procedures are described.
    category: Safety
    severity: High
    expected_fields: [procedure]
    search_keywords: [entry, gas free]
  - id: SRP-02
    requirement: Duplicate of the hazmat requirement.
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SRP_core.json"), []byte(srpJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "safety.yaml"), []byte(safetyYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestParseChecklist_JSON(t *testing.T) {
	cl, err := ParseChecklist([]byte(srpJSON), ".json")
	require.NoError(t, err)

	assert.Equal(t, "Ship Recycling Plan", cl.Name)
	assert.Equal(t, "SRP Compliance Report", cl.ReportTitle)
	require.Len(t, cl.Requirements, 2)
	r := cl.Requirements[0]
	assert.Equal(t, "SRP-01", r.ID)
	assert.Equal(t, "The plan identifies the ship recycling facility.", r.Text)
	assert.Equal(t, []string{"facility name", "IMO number"}, r.ExpectedFields)
	assert.Equal(t, []string{"facility", "yard"}, r.SearchKeywords)
}

func TestParseChecklist_BareList(t *testing.T) {
	cl, err := ParseChecklist([]byte(`[{"id":"A","requirement":"x"}]`), ".json")
	require.NoError(t, err)
	require.Len(t, cl.Requirements, 1)

	cl, err = ParseChecklist([]byte("- id: B\n  requirement: y\n"), ".yml")
	require.NoError(t, err)
	require.Len(t, cl.Requirements, 1)
	assert.Equal(t, "B", cl.Requirements[0].ID)
}

func TestParseChecklist_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"bad json", "{", ".json"},
		{"missing id", `[{"requirement":"x"}]`, ".json"},
		{"missing text", `[{"id":"A"}]`, ".json"},
		{"duplicate id", `[{"id":"A","requirement":"x"},{"id":"A","requirement":"y"}]`, ".json"},
		{"unknown format", "id = 1", ".toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChecklist([]byte(tt.data), tt.ext)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_List(t *testing.T) {
	c := NewCatalog(writeCatalog(t))

	infos, err := c.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "safety", infos[0].ID)
	assert.Equal(t, 2, infos[0].Requirements)
	assert.Equal(t, "srp-core", infos[1].ID)
	assert.Equal(t, "Ship Recycling Plan", infos[1].Name)
}

func TestCatalog_GetUnknown(t *testing.T) {
	c := NewCatalog(writeCatalog(t))

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrChecklistNotFound)
}

func TestCatalogSource_ConsolidatesInOrder(t *testing.T) {
	c := NewCatalog(writeCatalog(t))

	reqs, err := c.Source("srp-core", "safety").Load()
	require.NoError(t, err)

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"SRP-01", "SRP-02", "SAF-01"}, ids)
	assert.Equal(t, "The plan includes the inventory of hazardous materials.", reqs[1].Text)

	reqs, err = c.Source("safety", "srp-core").Load()
	require.NoError(t, err)
	assert.Equal(t, "SAF-01", reqs[0].ID)
	assert.Equal(t, "Duplicate of the hazmat requirement.", reqs[1].Text)
}

func TestCatalogSource_Errors(t *testing.T) {
	c := NewCatalog(writeCatalog(t))

	_, err := c.Source().Load()
	assert.Error(t, err)

	_, err = c.Source("srp-core", "nope").Load()
	assert.ErrorIs(t, err, ErrChecklistNotFound)
}

func TestStaticSource_ReturnsCopy(t *testing.T) {
	src := StaticSource{{ID: "A", Text: "x"}}

	reqs, err := src.Load()
	require.NoError(t, err)
	reqs[0].ID = "changed"

	again, _ := src.Load()
	assert.Equal(t, "A", again[0].ID)
}
