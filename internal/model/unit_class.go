package model

import "slices"

// UnitTag groups classes by tribe and terrain. Used for filtering only.
type UnitTag string

const (
	TagClassic  UnitTag = "classic"
	TagAquarion UnitTag = "aquarion"
	TagElyrion  UnitTag = "elyrion"
	TagPolaris  UnitTag = "polaris"
	TagCymanti  UnitTag = "cymanti"
	TagLand     UnitTag = "land"
	TagNaval    UnitTag = "naval"
)

// VeteranHealthBonus is added to class health for veteran units.
const VeteranHealthBonus = 5

// UnitVariant overrides health for classes without a fixed value (ships).
// Veterancy is a plain condition, variants are not used for it.
type UnitVariant struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Health int    `json:"health"`
}

// UnitClass is the static per-version template of a unit type.
// Instances are created once by the catalog loader and never mutated.
type UnitClass struct {
	ID      string
	ShortID string
	Label   string
	Health  int // 0 for classes that take health from a variant
	Attack  float64
	Defense float64
	Range   int
	Skills  SkillMap
	Tags    []UnitTag

	Variants []UnitVariant
}

// HasSkill reports whether the class has the skill.
func (c *UnitClass) HasSkill(s SkillType) bool {
	return c.Skills.Has(s)
}

// HasTag reports whether the class carries the tag.
func (c *UnitClass) HasTag(t UnitTag) bool {
	return slices.Contains(c.Tags, t)
}

// HasFixedHealth is false for ships, whose health comes from the variant.
func (c *UnitClass) HasFixedHealth() bool {
	return len(c.Variants) == 0
}

// IsNavalOnly reports classes that can never stand on land (no wall bonus for them).
func (c *UnitClass) IsNavalOnly() bool {
	return c.HasTag(TagNaval) && !c.HasTag(TagLand)
}

// IsIndirectSupported reports whether the class can deal splash-style damage
// (splash, stomp or explosion).
func (c *UnitClass) IsIndirectSupported() bool {
	return c.Skills.Has(Splash) || c.Skills.Has(Stomp) || c.Skills.Has(Explode)
}

// IsRanged reports whether the class attacks from distance.
func (c *UnitClass) IsRanged() bool {
	return c.Range > 1
}

// DefaultVariant returns the first variant, or nil for fixed-health classes.
func (c *UnitClass) DefaultVariant() *UnitVariant {
	if len(c.Variants) == 0 {
		return nil
	}
	return &c.Variants[0]
}

// Variant looks up a variant by id.
func (c *UnitClass) Variant(id string) *UnitVariant {
	for i := range c.Variants {
		if c.Variants[i].ID == id {
			return &c.Variants[i]
		}
	}
	return nil
}

// DefaultHealth returns the full health of a fresh unit of this class.
// Variant health is final, the veteran bonus applies to class health only.
func (c *UnitClass) DefaultHealth(variant *UnitVariant, veteran bool) int {
	if variant != nil && !c.HasFixedHealth() {
		return variant.Health
	}
	if veteran {
		return c.Health + VeteranHealthBonus
	}
	return c.Health
}
