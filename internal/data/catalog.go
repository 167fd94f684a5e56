package data

import (
	_ "embed"
	"fmt"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/polycalc/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

// VersionStatus marks how current a game version is.
type VersionStatus string

const (
	StatusBeta       VersionStatus = "beta"
	StatusLatest     VersionStatus = "latest"
	StatusDeprecated VersionStatus = "deprecated"
)

// catalogFile — YAML-представление catalog.yaml.
type catalogFile struct {
	Variants []model.UnitVariant `yaml:"variants"`
	Versions []versionDef        `yaml:"versions"`
}

type versionDef struct {
	ID      string        `yaml:"id"`
	GameID  string        `yaml:"game_id"`
	Label   string        `yaml:"label"`
	Status  VersionStatus `yaml:"status"`
	Base    string        `yaml:"base"`
	Removed []string      `yaml:"removed"`
	Units   []unitDef     `yaml:"units"`
}

type unitDef struct {
	ID       string   `yaml:"id"`
	ShortID  string   `yaml:"short_id"`
	Label    string   `yaml:"label"`
	Health   int      `yaml:"health"`
	Attack   float64  `yaml:"attack"`
	Defense  float64  `yaml:"defense"`
	Range    int      `yaml:"range"`
	Skills   []string `yaml:"skills"`
	Tags     []string `yaml:"tags"`
	Variants []string `yaml:"variants"`
}

// Catalog — неизменяемый registry версий игры.
// Создаётся один раз (LoadCatalog) и передаётся явно, глобального состояния нет.
type Catalog struct {
	versions []*Version
	byID     map[string]*Version
	latest   *Version
}

// LoadCatalog parses the embedded catalog.yaml.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// MustLoadCatalog is LoadCatalog for binaries and tests; the embedded file is
// validated by tests, so a failure here is a build defect.
func MustLoadCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog builds a catalog from YAML bytes.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	variants := make(map[string]model.UnitVariant, len(file.Variants))
	for _, v := range file.Variants {
		variants[v.ID] = v
	}

	c := &Catalog{byID: make(map[string]*Version, len(file.Versions))}
	defs := make(map[string][]unitDef, len(file.Versions))

	for _, vd := range file.Versions {
		if vd.ID == "" {
			return nil, fmt.Errorf("version without id")
		}
		if _, dup := c.byID[vd.ID]; dup {
			return nil, fmt.Errorf("duplicate version %q", vd.ID)
		}

		units, err := resolveUnitDefs(vd, defs)
		if err != nil {
			return nil, err
		}
		defs[vd.ID] = units

		classes := make([]*model.UnitClass, 0, len(units))
		for _, ud := range units {
			class, err := buildClass(ud, variants)
			if err != nil {
				return nil, fmt.Errorf("version %q: %w", vd.ID, err)
			}
			classes = append(classes, class)
		}
		if len(classes) == 0 {
			return nil, fmt.Errorf("version %q has no units", vd.ID)
		}

		v := newVersion(vd.ID, vd.GameID, vd.Label, vd.Status, classes)
		c.versions = append(c.versions, v)
		c.byID[v.ID] = v
		if v.Status == StatusLatest {
			c.latest = v
		}
	}

	if len(c.versions) == 0 {
		return nil, fmt.Errorf("catalog has no versions")
	}
	if c.latest == nil {
		c.latest = c.versions[len(c.versions)-1]
	}

	slog.Debug("loaded unit catalog", "versions", len(c.versions), "latest", c.latest.ID)
	return c, nil
}

// resolveUnitDefs applies base + overrides + removals.
// Overrides keep the base position, new ids are appended.
func resolveUnitDefs(vd versionDef, known map[string][]unitDef) ([]unitDef, error) {
	if vd.Base == "" {
		return slices.Clone(vd.Units), nil
	}

	base, ok := known[vd.Base]
	if !ok {
		return nil, fmt.Errorf("version %q: unknown base %q (bases must be declared first)", vd.ID, vd.Base)
	}

	units := slices.Clone(base)
	for _, ud := range vd.Units {
		idx := slices.IndexFunc(units, func(u unitDef) bool { return u.ID == ud.ID })
		if idx >= 0 {
			units[idx] = ud
		} else {
			units = append(units, ud)
		}
	}

	for _, id := range vd.Removed {
		units = slices.DeleteFunc(units, func(u unitDef) bool { return u.ID == id })
	}
	return units, nil
}

func buildClass(ud unitDef, variants map[string]model.UnitVariant) (*model.UnitClass, error) {
	if ud.ID == "" || len(ud.ShortID) != 2 {
		return nil, fmt.Errorf("unit %q: id and two-letter short id required", ud.ID)
	}

	class := &model.UnitClass{
		ID:      ud.ID,
		ShortID: ud.ShortID,
		Label:   ud.Label,
		Health:  ud.Health,
		Attack:  ud.Attack,
		Defense: ud.Defense,
		Range:   ud.Range,
	}

	for _, name := range ud.Skills {
		s, ok := model.ParseSkill(name)
		if !ok {
			return nil, fmt.Errorf("unit %q: unknown skill %q", ud.ID, name)
		}
		class.Skills[s] = true
	}

	for _, tag := range ud.Tags {
		class.Tags = append(class.Tags, model.UnitTag(tag))
	}

	for _, id := range ud.Variants {
		v, ok := variants[id]
		if !ok {
			return nil, fmt.Errorf("unit %q: unknown variant %q", ud.ID, id)
		}
		class.Variants = append(class.Variants, v)
	}

	if class.HasFixedHealth() && class.Health <= 0 {
		return nil, fmt.Errorf("unit %q: health or variants required", ud.ID)
	}
	return class, nil
}

// Version returns a version by id, or nil.
func (c *Catalog) Version(id string) *Version {
	return c.byID[id]
}

// Latest returns the version marked latest.
func (c *Catalog) Latest() *Version {
	return c.latest
}

// Versions returns all versions in declaration order.
func (c *Catalog) Versions() []*Version {
	return slices.Clone(c.versions)
}

// ResolveVersion returns the version or falls back to latest.
// Empty id is a normal request for the default; unknown id is logged.
func (c *Catalog) ResolveVersion(id string) *Version {
	if id == "" {
		return c.latest
	}
	if v, ok := c.byID[id]; ok {
		return v
	}
	slog.Warn("unknown version, using latest", "version", id, "latest", c.latest.ID)
	return c.latest
}
