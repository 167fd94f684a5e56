package model

import "fmt"

// SkillType is a permanent class capability that changes combat rules.
// Only skills relevant for the combat outcome are modelled.
type SkillType uint8

const (
	Fortify SkillType = iota
	Promote
	Splash
	Stomp
	Explode
	Tentacles
	Surprise
	Stiff
	Freeze
	Poison
	Convert
	Infiltrate
	Static

	skillCount
)

var skillNames = [skillCount]string{
	Fortify:    "fortify",
	Promote:    "promote",
	Splash:     "splash",
	Stomp:      "stomp",
	Explode:    "explode",
	Tentacles:  "tentacles",
	Surprise:   "surprise",
	Stiff:      "stiff",
	Freeze:     "freeze",
	Poison:     "poison",
	Convert:    "convert",
	Infiltrate: "infiltrate",
	Static:     "static",
}

func (s SkillType) String() string {
	if s >= skillCount {
		return fmt.Sprintf("skill(%d)", uint8(s))
	}
	return skillNames[s]
}

// ParseSkill looks up a skill by its text name.
func ParseSkill(name string) (SkillType, bool) {
	for s := SkillType(0); s < skillCount; s++ {
		if skillNames[s] == name {
			return s, true
		}
	}
	return 0, false
}

// SkillMap is a total SkillType → bool mapping, same layout as ConditionMap.
type SkillMap [skillCount]bool

// NewSkillMap returns a map with the given skills set.
func NewSkillMap(set ...SkillType) SkillMap {
	var m SkillMap
	for _, s := range set {
		if s < skillCount {
			m[s] = true
		}
	}
	return m
}

// Has reports whether the skill is set.
func (m SkillMap) Has(s SkillType) bool {
	if s >= skillCount {
		return false
	}
	return m[s]
}

// Names returns the text names of the set skills in declaration order.
func (m SkillMap) Names() []string {
	var out []string
	for s := SkillType(0); s < skillCount; s++ {
		if m[s] {
			out = append(out, skillNames[s])
		}
	}
	return out
}
