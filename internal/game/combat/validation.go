package combat

import (
	"errors"

	"github.com/udisondev/polycalc/internal/model"
)

// Reasons a fight is not resolved.
var (
	ErrAttackerDead      = errors.New("attacker is dead")
	ErrDefenderDead      = errors.New("defender is dead")
	ErrDefenderConverted = errors.New("defender is converted")
	ErrNoActiveMode      = errors.New("neither basic nor tentacle fight is active")
)

// ValidateFight checks whether Fight will change anything.
// Returns nil if the fight proceeds.
//
// Checks:
//   - Attacker alive
//   - Defender alive
//   - Defender not converted (already on the attacker's side)
//   - Basic or Tentacles on
//
// A Basic toggle on a tentacle attacker is inapplicable and does not count.
func ValidateFight(attacker, defender model.Unit, conditions FightConditions) error {
	if attacker.IsDead() {
		return ErrAttackerDead
	}
	if defender.IsDead() {
		return ErrDefenderDead
	}
	if defender.Has(model.Converted) {
		return ErrDefenderConverted
	}
	if !basicApplies(attacker, conditions) && !conditions.Tentacles.IsOn() {
		return ErrNoActiveMode
	}
	return nil
}

// basicApplies reports whether the basic fight is requested and possible.
func basicApplies(attacker model.Unit, conditions FightConditions) bool {
	return conditions.Basic.IsOn() && !attacker.Class().HasSkill(model.Tentacles)
}
