package brawl

import (
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
)

// Правило: у attacker'а не больше одной активной прямой клетки (isBasic && !isIndirect).
// Для explode-классов активные клетки строки либо все indirect ("explosion mode"),
// либо одна прямая.

// demote turns an active direct cell into indirect, or deactivates it when
// the class has no indirect attack.
func demote(fc combat.FightConditions) combat.FightConditions {
	if fc.Indirect.IsPresent() {
		fc.Indirect = combat.On
	} else {
		fc.Basic = combat.Off
	}
	return fc
}

// setRowMode brings the other active cells of an explode row in line with
// the cell at col.
func setRowMode(fights []combat.FightConditions, col int, explosion bool) {
	for j := range fights {
		if j == col || !fights[j].Basic.IsOn() {
			continue
		}
		if explosion {
			fights[j].Indirect = combat.On
		} else {
			fights[j].Basic = combat.Off
		}
	}
}

// rowMode returns the mode of the first active basic cell other than col.
func rowMode(fights []combat.FightConditions, col int) (explosion, found bool) {
	for j, fc := range fights {
		if j != col && fc.Basic.IsOn() {
			return fc.Indirect.IsOn(), true
		}
	}
	return false, false
}

// enforceAfterToggle restores the row invariant after key was flipped on col.
func enforceAfterToggle(a Attacker, col int, key combat.ToggleKey) Attacker {
	fights := a.Fights
	cell := fights[col]

	if a.Unit.Class().HasSkill(model.Explode) {
		if !cell.Basic.IsOn() {
			return a
		}
		switch key {
		case combat.KeyIndirect:
			setRowMode(fights, col, cell.Indirect.IsOn())
		case combat.KeyBasic:
			if explosion, ok := rowMode(fights, col); ok {
				fights[col].Indirect = combat.Bool(explosion)
			}
			setRowMode(fights, col, fights[col].Indirect.IsOn())
		}
		return a
	}

	if !cell.IsActiveDirect() {
		return a
	}
	for j := range fights {
		if j != col && fights[j].IsActiveDirect() {
			fights[j] = demote(fights[j])
		}
	}
	return a
}

// normalizeRow enforces the invariant on a whole row: the first active cell
// wins, later conflicting cells are demoted.
func normalizeRow(a Attacker) Attacker {
	fights := a.Fights

	if a.Unit.Class().HasSkill(model.Explode) {
		for j, fc := range fights {
			if fc.Basic.IsOn() {
				setRowMode(fights, j, fc.Indirect.IsOn())
				break
			}
		}
		return a
	}

	seen := false
	for j := range fights {
		if !fights[j].IsActiveDirect() {
			continue
		}
		if seen {
			fights[j] = demote(fights[j])
		}
		seen = true
	}
	return a
}

// regenerate re-derives a cell after one of its units changed.
// A cell that was fighting indirectly and lost the indirect option is
// switched off rather than silently turned into a direct attack.
func regenerate(attacker, defender model.Unit, prev combat.FightConditions) combat.FightConditions {
	next := combat.CreateFightConditions(attacker, defender, &prev, true)
	if prev.Indirect.IsOn() && !next.Indirect.IsPresent() && next.Basic.IsPresent() {
		next.Basic = combat.Off
	}
	return next
}
