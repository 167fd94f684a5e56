package data

import (
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/udisondev/polycalc/internal/model"
)

// Version — набор классов одной версии игры.
// Каждая версия соответствует крупному обновлению, влияющему на механику боя.
type Version struct {
	ID     string
	GameID string
	Label  string
	Status VersionStatus

	classes   []*model.UnitClass
	byID      map[string]*model.UnitClass
	byShortID map[string]*model.UnitClass
}

func newVersion(id, gameID, label string, status VersionStatus, classes []*model.UnitClass) *Version {
	v := &Version{
		ID:        id,
		GameID:    gameID,
		Label:     label,
		Status:    status,
		classes:   classes,
		byID:      make(map[string]*model.UnitClass, len(classes)),
		byShortID: make(map[string]*model.UnitClass, len(classes)),
	}
	for _, c := range classes {
		v.byID[c.ID] = c
		v.byShortID[c.ShortID] = c
	}
	return v
}

// Class returns a class by id, or nil.
func (v *Version) Class(id string) *model.UnitClass {
	return v.byID[id]
}

// ClassByShortID returns a class by its two-letter id, or nil.
func (v *Version) ClassByShortID(short string) *model.UnitClass {
	return v.byShortID[short]
}

// DefaultClass returns the first class of the version.
func (v *Version) DefaultClass() *model.UnitClass {
	return v.classes[0]
}

// Classes returns all classes in catalog order.
func (v *Version) Classes() []*model.UnitClass {
	return slices.Clone(v.classes)
}

// ClassesWithTags returns classes carrying any of the tags.
// No tags means all classes.
func (v *Version) ClassesWithTags(tags ...model.UnitTag) []*model.UnitClass {
	if len(tags) == 0 {
		return v.Classes()
	}
	var out []*model.UnitClass
	for _, c := range v.classes {
		if slices.ContainsFunc(tags, c.HasTag) {
			out = append(out, c)
		}
	}
	return out
}

// ResolveClass returns the class or the default class when the id is unknown.
func (v *Version) ResolveClass(id string) *model.UnitClass {
	if c, ok := v.byID[id]; ok {
		return c
	}
	def := v.DefaultClass()
	slog.Warn("unknown unit class, using default", "class", id, "version", v.ID, "default", def.ID)
	return def
}

// <short id><health?><'d'?>, e.g. "wr10d", "je 15", "rd".
var unitNotation = regexp.MustCompile(`([a-z]{2}) *(\d*) *([d]?)`)

// ParseUnit parses the short unit notation.
// Missing health means default health; a trailing 'd' sets the defense bonus.
func (v *Version) ParseUnit(input string) (model.Unit, bool) {
	m := unitNotation.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return model.Unit{}, false
	}

	class := v.ClassByShortID(m[1])
	if class == nil {
		return model.Unit{}, false
	}

	var conditions model.ConditionMap
	if m[3] == "d" {
		conditions = conditions.With(model.DefenseBonus, true)
	}

	variant := class.DefaultVariant()
	health := class.DefaultHealth(variant, false)
	if m[2] != "" {
		h, err := strconv.Atoi(m[2])
		if err != nil {
			return model.Unit{}, false
		}
		health = h
	}

	return model.NewUnit(class, variant, health, conditions), true
}
