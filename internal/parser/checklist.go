package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/raphaelgruber/complycheck/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrChecklistNotFound indicates an unknown checklist ID.
var ErrChecklistNotFound = errors.New("checklist not found")

// ParseChecklist decodes a checklist from JSON or YAML. The format is picked
// from ext (".json", ".yaml", ".yml"). A bare list of requirements is
// accepted as well as the full checklist object.
func ParseChecklist(data []byte, ext string) (models.Checklist, error) {
	var cl models.Checklist
	trimmed := bytes.TrimSpace(data)

	switch strings.ToLower(ext) {
	case ".json":
		if bytes.HasPrefix(trimmed, []byte("[")) {
			if err := json.Unmarshal(trimmed, &cl.Requirements); err != nil {
				return cl, fmt.Errorf("decode json requirements: %w", err)
			}
		} else if err := json.Unmarshal(trimmed, &cl); err != nil {
			return cl, fmt.Errorf("decode json checklist: %w", err)
		}
	case ".yaml", ".yml":
		if bytes.HasPrefix(trimmed, []byte("-")) {
			if err := yaml.Unmarshal(trimmed, &cl.Requirements); err != nil {
				return cl, fmt.Errorf("decode yaml requirements: %w", err)
			}
		} else if err := yaml.Unmarshal(trimmed, &cl); err != nil {
			return cl, fmt.Errorf("decode yaml checklist: %w", err)
		}
	default:
		return cl, fmt.Errorf("unsupported checklist format %q", ext)
	}

	if err := validateRequirements(cl.Requirements); err != nil {
		return cl, err
	}
	return cl, nil
}

func validateRequirements(reqs []models.Requirement) error {
	seen := make(map[string]struct{}, len(reqs))
	for i, r := range reqs {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("requirement %d: missing id", i)
		}
		if strings.TrimSpace(r.Text) == "" {
			return fmt.Errorf("requirement %s: missing requirement text", r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("requirement %s: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// LoadChecklist reads and parses a checklist file. The checklist ID is the
// slugified file name without extension.
func LoadChecklist(path string) (models.Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Checklist{}, fmt.Errorf("read checklist: %w", err)
	}
	ext := filepath.Ext(path)
	cl, err := ParseChecklist(data, ext)
	if err != nil {
		return cl, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cl.ID = models.Slugify(strings.TrimSuffix(filepath.Base(path), ext))
	if cl.Name == "" {
		cl.Name = cl.ID
	}
	return cl, nil
}

// Catalog is a directory of checklist files.
type Catalog struct {
	dir string
}

// NewCatalog creates a catalog over dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

func (c *Catalog) paths() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read checklist dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(c.dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// List returns every checklist in the catalog, sorted by ID.
// Files that fail to parse are skipped.
func (c *Catalog) List() ([]models.ChecklistInfo, error) {
	paths, err := c.paths()
	if err != nil {
		return nil, err
	}
	infos := make([]models.ChecklistInfo, 0, len(paths))
	for _, p := range paths {
		cl, err := LoadChecklist(p)
		if err != nil {
			continue
		}
		infos = append(infos, cl.Info())
	}
	slices.SortFunc(infos, func(a, b models.ChecklistInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos, nil
}

// Get loads the checklist with the given ID.
func (c *Catalog) Get(id string) (models.Checklist, error) {
	paths, err := c.paths()
	if err != nil {
		return models.Checklist{}, err
	}
	for _, p := range paths {
		base := filepath.Base(p)
		if models.Slugify(strings.TrimSuffix(base, filepath.Ext(base))) == id {
			return LoadChecklist(p)
		}
	}
	return models.Checklist{}, fmt.Errorf("%w: %s", ErrChecklistNotFound, id)
}

// Source returns a checklist source that consolidates the given checklists
// in order. Nothing is read until Load is called.
func (c *Catalog) Source(ids ...string) *CatalogSource {
	return &CatalogSource{catalog: c, ids: slices.Clone(ids)}
}

// CatalogSource loads and consolidates checklists from a Catalog.
type CatalogSource struct {
	catalog *Catalog
	ids     []string
}

// Load reads every referenced checklist and concatenates their requirements
// in the order the IDs were given. When two checklists share a requirement
// ID the first occurrence wins.
func (s *CatalogSource) Load() ([]models.Requirement, error) {
	if len(s.ids) == 0 {
		return nil, errors.New("no checklist selected")
	}
	seen := make(map[string]struct{})
	var reqs []models.Requirement
	for _, id := range s.ids {
		cl, err := s.catalog.Get(id)
		if err != nil {
			return nil, err
		}
		for _, r := range cl.Requirements {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

// IDs returns the checklist IDs this source consolidates.
func (s *CatalogSource) IDs() []string {
	return slices.Clone(s.ids)
}

// StaticSource serves a fixed requirement list.
type StaticSource []models.Requirement

// Load implements the checklist source contract.
func (s StaticSource) Load() ([]models.Requirement, error) {
	return slices.Clone([]models.Requirement(s)), nil
}
