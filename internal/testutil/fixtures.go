package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
)

// FireSafetyChecklist has three requirements; only the first two are
// answered by RecyclingPlan.
const FireSafetyChecklist = `checklist_name: Fire Safety
version: "1.0"
requirements:
  - id: FS-01
    requirement: The plan must name the fire safety officer.
    regulation_source: Regulation 9
    category: Safety
    severity: High
    expected_fields: [officer name]
    check_type: presence
    search_keywords: [fire, officer]
  - id: FS-02
    requirement: The plan must include the inventory of hazardous materials.
    category: Hazmat
    severity: Critical
    search_keywords: [asbestos, inventory]
  - id: FS-03
    requirement: The plan must describe how ballast water is treated.
    category: Environment
    severity: Medium
    search_keywords: [ballast, water]
`

// WasteChecklist shares FS-03 with FireSafetyChecklist.
const WasteChecklist = `{
  "checklist_name": "Waste Handling",
  "version": "2",
  "requirements": [
    {"id": "WH-01", "requirement": "Bilge water must be pumped ashore.", "search_keywords": ["bilge"]},
    {"id": "FS-03", "requirement": "Duplicate ballast requirement."}
  ]
}`

// WriteCatalog writes both checklists into a temporary directory and
// returns it. Their IDs are "fire-safety" and "waste".
func WriteCatalog(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("fire_safety.yaml", FireSafetyChecklist)
	write("waste.json", WasteChecklist)
	return dir
}

// RecyclingPlan returns a four page text document with one topic per page.
func RecyclingPlan() []byte {
	pages := []string{
		"Ship Recycling Plan for MV Example. The plan was prepared by the yard safety department and approved by the competent authority.",
		"Fire safety: the fire safety officer is Jane Doe. Fire extinguishers are inspected weekly and hot work permits are issued daily.",
		"Hazardous materials: the inventory of hazardous materials lists asbestos in the engine room and PCB in cable insulation.",
		"Waste management: bilge water is pumped ashore to a licensed reception facility before cutting starts.",
	}
	return []byte(strings.Join(pages, "\f"))
}

// Config returns settings tuned for fast tests: small chunks, millisecond
// backoff, an in-memory index cache and temporary results and checklist
// directories.
func Config(t testing.TB) config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.ChunkSize = 200
	cfg.ChunkOverlap = 40
	cfg.EmbedBatchSize = 4
	cfg.EmbedConcurrency = 2
	cfg.EmbedDimension = 0
	cfg.RetrievalK = 3
	cfg.IndexCacheSize = 4
	cfg.IndexStore = config.IndexStoreMemory
	cfg.MaxAttempts = 2
	cfg.BackoffBase = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	cfg.MaxConsecutiveFailures = 3
	cfg.ResultsDir = t.TempDir()
	cfg.ChecklistsDir = WriteCatalog(t)
	cfg.TaskRetention = 0
	cfg.SubscriberBuffer = 256
	cfg.LogFile = ""
	return cfg
}
