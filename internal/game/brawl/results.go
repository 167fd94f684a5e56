package brawl

import (
	"encoding/json"

	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
)

// DeadSide marks which side was already dead when a cell came up.
type DeadSide uint8

const (
	NoneDead DeadSide = iota
	AttackerDead
	DefenderDead
	BothDead
)

func (d DeadSide) String() string {
	switch d {
	case AttackerDead:
		return "attacker"
	case DefenderDead:
		return "defender"
	case BothDead:
		return "both"
	default:
		return ""
	}
}

func (d DeadSide) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func deadSide(attacker, defender model.Unit) DeadSide {
	switch {
	case attacker.IsDead() && defender.IsDead():
		return BothDead
	case attacker.IsDead():
		return AttackerDead
	case defender.IsDead():
		return DefenderDead
	default:
		return NoneDead
	}
}

// Cell is the snapshot of one attacker/defender pairing after it resolved.
type Cell struct {
	Attacker   model.Unit             `json:"attacker"`
	Defender   model.Unit             `json:"defender"`
	Conditions combat.FightConditions `json:"conditions"`
	// Fought is true when the resolver ran for this cell.
	Fought  bool     `json:"fought"`
	WasDead DeadSide `json:"wasDead,omitempty"`
}

// Results — производное от State, пересчитывается после каждого action.
// Cells[i][j]: attacker i против defender j.
type Results struct {
	Cells     [][]Cell     `json:"cells"`
	Attackers []model.Unit `json:"attackers"`
	Defenders []model.Unit `json:"defenders"`
}

// Compute resolves the grid: attackers in column order, each against the
// defenders in row order. Both sides carry their state to the next cell.
func Compute(attackers []Attacker, defenders []model.Unit) Results {
	res := Results{
		Cells:     make([][]Cell, len(attackers)),
		Attackers: make([]model.Unit, len(attackers)),
		Defenders: make([]model.Unit, len(defenders)),
	}
	copy(res.Defenders, defenders)

	for i, a := range attackers {
		attacker := a.Unit
		row := make([]Cell, len(defenders))

		for j := range defenders {
			var fc combat.FightConditions
			if j < len(a.Fights) {
				fc = a.Fights[j]
			}
			defender := res.Defenders[j]

			cell := Cell{Attacker: attacker, Defender: defender, Conditions: fc}
			switch {
			case attacker.IsDead() || defender.IsDead():
				cell.WasDead = deadSide(attacker, defender)
			case fc.IsActive():
				r := combat.Fight(attacker, defender, fc)
				attacker, defender = r.Attacker, r.Defender
				cell.Attacker, cell.Defender = attacker, defender
				cell.Fought = true
			}

			res.Defenders[j] = defender
			row[j] = cell
		}

		res.Cells[i] = row
		res.Attackers[i] = attacker
	}
	return res
}
