package brawl

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
)

// Action is one of the state transitions below.
type Action interface {
	actionName() string
}

// CreateUnit appends an attacker column or a defender row.
// CopyIndex clones an existing unit (attackers also clone their fights).
type CreateUnit struct {
	IsAttacker bool
	CopyIndex  *int
}

// EditUnit replaces a unit and re-derives every cell it touches.
type EditUnit struct {
	IsAttacker bool
	Index      int
	Unit       model.Unit
}

// DeleteUnit removes a column or row.
type DeleteUnit struct {
	IsAttacker bool
	Index      int
}

// Direction of MoveUnit.
type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

// MoveUnit swaps an attacker with its neighbour, changing resolution order.
type MoveUnit struct {
	Index     int
	Direction Direction
}

// ToggleFight flips one toggle of one cell.
type ToggleFight struct {
	AttackerIndex int
	DefenderIndex int
	Key           combat.ToggleKey
}

// ChangeVersion remaps every unit to another game version.
type ChangeVersion struct {
	Version *data.Version
}

func (CreateUnit) actionName() string    { return "createUnit" }
func (EditUnit) actionName() string      { return "editUnit" }
func (DeleteUnit) actionName() string    { return "deleteUnit" }
func (MoveUnit) actionName() string      { return "moveUnit" }
func (ToggleFight) actionName() string   { return "fightConditions" }
func (ChangeVersion) actionName() string { return "units" }

// Reduce applies action to s and returns the new state with fresh results.
// s is never modified. Invalid actions (bad index, inapplicable toggle) are
// logged and leave the state as it was.
func Reduce(s State, action Action) State {
	next := s.clone()

	var ok bool
	switch a := action.(type) {
	case CreateUnit:
		ok = next.createUnit(a)
	case EditUnit:
		ok = next.editUnit(a)
	case DeleteUnit:
		ok = next.deleteUnit(a)
	case MoveUnit:
		ok = next.moveUnit(a)
	case ToggleFight:
		ok = next.toggleFight(a)
	case ChangeVersion:
		ok = next.changeVersion(a)
	default:
		slog.Warn("unknown brawl action", "type", fmt.Sprintf("%T", action))
	}
	if !ok {
		return s
	}

	next.Results = Compute(next.Attackers, next.Defenders)
	return next
}

func rejectIndex(action Action, index, length int) bool {
	if index >= 0 && index < length {
		return false
	}
	slog.Warn("brawl action index out of range", "action", action.actionName(), "index", index, "len", length)
	return true
}

func (s *State) createUnit(a CreateUnit) bool {
	if a.IsAttacker {
		return s.createAttacker(a)
	}
	return s.createDefender(a)
}

func (s *State) createAttacker(a CreateUnit) bool {
	if a.CopyIndex != nil {
		if rejectIndex(a, *a.CopyIndex, len(s.Attackers)) {
			return false
		}
		src := s.Attackers[*a.CopyIndex]
		s.Attackers = append(s.Attackers, Attacker{Unit: src.Unit, Fights: slices.Clone(src.Fights)})
		return true
	}

	unit := defaultUnit(s.Version)
	first := len(s.Attackers) == 0
	fights := make([]combat.FightConditions, len(s.Defenders))
	for j, d := range s.Defenders {
		passive := !(first && j == 0)
		fights[j] = combat.CreateFightConditions(unit, d, nil, passive)
	}
	s.Attackers = append(s.Attackers, Attacker{Unit: unit, Fights: fights})
	return true
}

func (s *State) createDefender(a CreateUnit) bool {
	unit := defaultUnit(s.Version)
	if a.CopyIndex != nil {
		if rejectIndex(a, *a.CopyIndex, len(s.Defenders)) {
			return false
		}
		unit = s.Defenders[*a.CopyIndex]
	}

	first := len(s.Defenders) == 0
	s.Defenders = append(s.Defenders, unit)
	for i := range s.Attackers {
		att := &s.Attackers[i]
		passive := !(first && i == 0)
		att.Fights = append(att.Fights, combat.CreateFightConditions(att.Unit, unit, nil, passive))
		s.Attackers[i] = normalizeRow(*att)
	}
	return true
}

func (s *State) editUnit(a EditUnit) bool {
	if a.Unit.Class() == nil {
		slog.Warn("edit with empty unit ignored", "attacker", a.IsAttacker, "index", a.Index)
		return false
	}

	if a.IsAttacker {
		if rejectIndex(a, a.Index, len(s.Attackers)) {
			return false
		}
		att := s.Attackers[a.Index]
		att.Unit = a.Unit
		for j, d := range s.Defenders {
			att.Fights[j] = regenerate(att.Unit, d, att.Fights[j])
		}
		s.Attackers[a.Index] = normalizeRow(att)
		return true
	}

	if rejectIndex(a, a.Index, len(s.Defenders)) {
		return false
	}
	s.Defenders[a.Index] = a.Unit
	for i := range s.Attackers {
		att := s.Attackers[i]
		att.Fights[a.Index] = regenerate(att.Unit, a.Unit, att.Fights[a.Index])
		s.Attackers[i] = normalizeRow(att)
	}
	return true
}

func (s *State) deleteUnit(a DeleteUnit) bool {
	if a.IsAttacker {
		if rejectIndex(a, a.Index, len(s.Attackers)) {
			return false
		}
		s.Attackers = slices.Delete(s.Attackers, a.Index, a.Index+1)
		return true
	}

	if rejectIndex(a, a.Index, len(s.Defenders)) {
		return false
	}
	s.Defenders = slices.Delete(s.Defenders, a.Index, a.Index+1)
	for i := range s.Attackers {
		s.Attackers[i].Fights = slices.Delete(s.Attackers[i].Fights, a.Index, a.Index+1)
	}
	return true
}

func (s *State) moveUnit(a MoveUnit) bool {
	if a.Direction != Left && a.Direction != Right {
		slog.Warn("invalid move direction", "direction", int(a.Direction))
		return false
	}
	if rejectIndex(a, a.Index, len(s.Attackers)) {
		return false
	}
	target := a.Index + int(a.Direction)
	if target < 0 || target >= len(s.Attackers) {
		// край сетки: двигать некуда
		return false
	}
	s.Attackers[a.Index], s.Attackers[target] = s.Attackers[target], s.Attackers[a.Index]
	return true
}

func (s *State) toggleFight(a ToggleFight) bool {
	if rejectIndex(a, a.AttackerIndex, len(s.Attackers)) || rejectIndex(a, a.DefenderIndex, len(s.Defenders)) {
		return false
	}

	att := s.Attackers[a.AttackerIndex]
	prev := att.Fights[a.DefenderIndex]
	updated := combat.UpdateFightConditions(prev, a.Key)
	if updated == prev {
		return false
	}

	att.Fights[a.DefenderIndex] = updated
	s.Attackers[a.AttackerIndex] = enforceAfterToggle(att, a.DefenderIndex, a.Key)
	return true
}

func (s *State) changeVersion(a ChangeVersion) bool {
	if a.Version == nil {
		slog.Warn("change to nil version ignored")
		return false
	}

	s.Version = a.Version
	for j, d := range s.Defenders {
		s.Defenders[j] = remapUnit(a.Version, d)
	}
	for i := range s.Attackers {
		att := s.Attackers[i]
		att.Unit = remapUnit(a.Version, att.Unit)
		for j, d := range s.Defenders {
			att.Fights[j] = regenerate(att.Unit, d, att.Fights[j])
		}
		s.Attackers[i] = normalizeRow(att)
	}
	return true
}

// remapUnit moves a unit to the class with the same id in version.
// Health stays at max if it was at max, otherwise it is clamped to the new max.
func remapUnit(version *data.Version, u model.Unit) model.Unit {
	class := version.ResolveClass(u.Class().ID)

	var variant *model.UnitVariant
	if u.Variant() != nil {
		variant = class.Variant(u.Variant().ID)
	}
	if variant == nil {
		variant = class.DefaultVariant()
	}

	conditions := u.Conditions()
	if !class.HasSkill(model.Promote) {
		conditions = conditions.With(model.Veteran, false)
	}

	next := model.NewUnit(class, variant, u.Health(), conditions)
	if u.Health() == u.MaxHealth() || next.Health() > next.MaxHealth() {
		next = next.WithHealth(next.MaxHealth())
	}
	return next
}
