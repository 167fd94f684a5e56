package model

import "encoding/json"

// Stat modifiers applied by conditions.
const (
	DefenseBonusMultiplier = 1.5
	WallBonusMultiplier    = 4.0
	PoisonMultiplier       = 0.7
	BoostAddition          = 0.5
)

// Unit — боевая единица: класс + вариант + здоровье + состояния.
// Value type (immutable): любое изменение (бой, редактирование) создаёт новый Unit.
// Units are comparable with ==.
type Unit struct {
	class      *UnitClass
	variant    *UnitVariant
	health     int
	conditions ConditionMap
}

// NewUnit creates a unit. A nil variant is replaced by the class default for
// variant-based classes.
func NewUnit(class *UnitClass, variant *UnitVariant, health int, conditions ConditionMap) Unit {
	if variant == nil && class != nil {
		variant = class.DefaultVariant()
	}
	return Unit{class: class, variant: variant, health: health, conditions: conditions}
}

// NewFullHealthUnit creates a unit at its default health.
func NewFullHealthUnit(class *UnitClass, variant *UnitVariant, conditions ConditionMap) Unit {
	if variant == nil {
		variant = class.DefaultVariant()
	}
	return NewUnit(class, variant, class.DefaultHealth(variant, conditions.Has(Veteran)), conditions)
}

func (u Unit) Class() *UnitClass        { return u.class }
func (u Unit) Variant() *UnitVariant    { return u.variant }
func (u Unit) Health() int              { return u.health }
func (u Unit) Conditions() ConditionMap { return u.conditions }

// Has is a shortcut for Conditions().Has.
func (u Unit) Has(c ConditionType) bool {
	return u.conditions.Has(c)
}

// Update returns a copy with new health and conditions.
func (u Unit) Update(health int, conditions ConditionMap) Unit {
	u.health = health
	u.conditions = conditions
	return u
}

// WithHealth returns a copy with new health.
func (u Unit) WithHealth(health int) Unit {
	u.health = health
	return u
}

// IsDead reports whether the unit has no health left.
func (u Unit) IsDead() bool {
	return u.health <= 0
}

// MaxHealth is the variant health, or class health plus the veteran bonus.
func (u Unit) MaxHealth() int {
	if u.variant != nil {
		return u.variant.Health
	}
	health := u.class.Health
	if u.conditions.Has(Veteran) {
		health += VeteranHealthBonus
	}
	return health
}

// Attack is the class attack, increased while boosted.
func (u Unit) Attack() float64 {
	if u.conditions.Has(Boosted) {
		return u.class.Attack + BoostAddition
	}
	return u.class.Attack
}

// Defense is the class defense adjusted by conditions.
// Poison wins over any bonus; the wall bonus wins over the defense bonus.
func (u Unit) Defense() float64 {
	switch {
	case u.conditions.Has(Poisoned):
		return u.class.Defense * PoisonMultiplier
	case u.conditions.Has(WallBonus):
		return u.class.Defense * WallBonusMultiplier
	case u.conditions.Has(DefenseBonus):
		return u.class.Defense * DefenseBonusMultiplier
	default:
		return u.class.Defense
	}
}

type unitJSON struct {
	ClassID    string   `json:"classId"`
	Label      string   `json:"label"`
	VariantID  string   `json:"variantId,omitempty"`
	Health     int      `json:"health"`
	MaxHealth  int      `json:"maxHealth"`
	Attack     float64  `json:"attack"`
	Defense    float64  `json:"defense"`
	Conditions []string `json:"conditions"`
	IsDead     bool     `json:"isDead"`
}

// MarshalJSON encodes the unit snapshot with derived stats.
func (u Unit) MarshalJSON() ([]byte, error) {
	if u.class == nil {
		return []byte("null"), nil
	}
	out := unitJSON{
		ClassID:    u.class.ID,
		Label:      u.class.Label,
		Health:     u.health,
		MaxHealth:  u.MaxHealth(),
		Attack:     u.Attack(),
		Defense:    u.Defense(),
		Conditions: u.conditions.Names(),
		IsDead:     u.IsDead(),
	}
	if u.variant != nil {
		out.VariantID = u.variant.ID
	}
	return json.Marshal(out)
}
