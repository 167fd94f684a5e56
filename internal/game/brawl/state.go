// Package brawl implements the grid of attackers against defenders: its state,
// the action set that mutates it and the recomputed results.
package brawl

import (
	"encoding/json"
	"slices"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
)

// Attacker is one column of the grid: the unit and its cell per defender.
type Attacker struct {
	Unit   model.Unit               `json:"unit"`
	Fights []combat.FightConditions `json:"fights"`
}

// State — полное состояние brawl. Value type: Reduce возвращает новый State,
// исходный не изменяется.
type State struct {
	Version   *data.Version
	Attackers []Attacker
	Defenders []model.Unit
	Results   Results
}

// New creates a brawl with one default attacker against one default defender.
func New(version *data.Version) State {
	unit := defaultUnit(version)
	s := State{
		Version: version,
		Attackers: []Attacker{{
			Unit:   unit,
			Fights: []combat.FightConditions{combat.CreateFightConditions(unit, unit, nil, false)},
		}},
		Defenders: []model.Unit{unit},
	}
	s.Results = Compute(s.Attackers, s.Defenders)
	return s
}

// Restore builds a state from prepared parts: rows are padded or cut to the
// defender count, cells re-derived with their values as prev, rows normalised.
func Restore(version *data.Version, attackers []Attacker, defenders []model.Unit) State {
	s := State{
		Version:   version,
		Attackers: make([]Attacker, 0, len(attackers)),
		Defenders: slices.Clone(defenders),
	}
	for _, a := range attackers {
		fights := make([]combat.FightConditions, len(defenders))
		for j, d := range defenders {
			var prev *combat.FightConditions
			if j < len(a.Fights) {
				prev = &a.Fights[j]
			}
			fights[j] = combat.CreateFightConditions(a.Unit, d, prev, true)
		}
		s.Attackers = append(s.Attackers, normalizeRow(Attacker{Unit: a.Unit, Fights: fights}))
	}
	s.Results = Compute(s.Attackers, s.Defenders)
	return s
}

func defaultUnit(version *data.Version) model.Unit {
	return model.NewFullHealthUnit(version.DefaultClass(), nil, model.ConditionMap{})
}

// clone returns a deep copy of the mutable parts.
func (s State) clone() State {
	out := State{
		Version:   s.Version,
		Attackers: make([]Attacker, len(s.Attackers)),
		Defenders: slices.Clone(s.Defenders),
	}
	for i, a := range s.Attackers {
		out.Attackers[i] = Attacker{Unit: a.Unit, Fights: slices.Clone(a.Fights)}
	}
	return out
}

type stateJSON struct {
	VersionID string       `json:"versionId"`
	Attackers []Attacker   `json:"attackers"`
	Defenders []model.Unit `json:"defenders"`
	Results   Results      `json:"results"`
}

// MarshalJSON encodes the state for clients.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Attackers: s.Attackers,
		Defenders: s.Defenders,
		Results:   s.Results,
	}
	if s.Version != nil {
		out.VersionID = s.Version.ID
	}
	return json.Marshal(out)
}
