package model

import (
	"encoding/json"
	"fmt"
)

// ConditionType — временное состояние юнита, влияющее на статы или ход боя.
type ConditionType uint8

const (
	Veteran ConditionType = iota
	DefenseBonus
	WallBonus
	Freezed
	Poisoned
	Boosted
	Converted

	conditionCount
)

var conditionNames = [conditionCount]string{
	Veteran:      "veteran",
	DefenseBonus: "defenseBonus",
	WallBonus:    "wallBonus",
	Freezed:      "freezed",
	Poisoned:     "poisoned",
	Boosted:      "boosted",
	Converted:    "converted",
}

var conditionLabels = [conditionCount]string{
	Veteran:      "Veteran",
	DefenseBonus: "Defense bonus",
	WallBonus:    "Wall bonus",
	Freezed:      "Frozen",
	Poisoned:     "Poisoned",
	Boosted:      "Boosted",
	Converted:    "Converted",
}

// AllConditions returns every condition type in declaration order.
func AllConditions() []ConditionType {
	out := make([]ConditionType, 0, conditionCount)
	for c := ConditionType(0); c < conditionCount; c++ {
		out = append(out, c)
	}
	return out
}

func (c ConditionType) String() string {
	if c >= conditionCount {
		return fmt.Sprintf("condition(%d)", uint8(c))
	}
	return conditionNames[c]
}

// Label returns a human readable name.
func (c ConditionType) Label() string {
	if c >= conditionCount {
		return c.String()
	}
	return conditionLabels[c]
}

// ParseCondition looks up a condition by its text name (e.g. "defenseBonus").
func ParseCondition(name string) (ConditionType, bool) {
	for c := ConditionType(0); c < conditionCount; c++ {
		if conditionNames[c] == name {
			return c, true
		}
	}
	return 0, false
}

// ConditionMap — тотальное отображение ConditionType → bool.
// Массив фиксированного размера: отсутствующих ключей быть не может, zero value = все false.
// Value type, передаётся по значению (immutable).
type ConditionMap [conditionCount]bool

// NewConditionMap returns a map with the given conditions set.
func NewConditionMap(set ...ConditionType) ConditionMap {
	var m ConditionMap
	for _, c := range set {
		if c < conditionCount {
			m[c] = true
		}
	}
	return m
}

// Has reports whether the condition is set.
func (m ConditionMap) Has(c ConditionType) bool {
	if c >= conditionCount {
		return false
	}
	return m[c]
}

// With returns a copy with the condition set to v (immutable pattern).
func (m ConditionMap) With(c ConditionType, v bool) ConditionMap {
	if c < conditionCount {
		m[c] = v
	}
	return m
}

// List returns the set conditions in declaration order.
func (m ConditionMap) List() []ConditionType {
	var out []ConditionType
	for c := ConditionType(0); c < conditionCount; c++ {
		if m[c] {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the text names of the set conditions.
func (m ConditionMap) Names() []string {
	list := m.List()
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.String())
	}
	return out
}

// MarshalJSON encodes the map as an object with every condition present.
func (m ConditionMap) MarshalJSON() ([]byte, error) {
	obj := make(map[string]bool, conditionCount)
	for c := ConditionType(0); c < conditionCount; c++ {
		obj[conditionNames[c]] = m[c]
	}
	return json.Marshal(obj)
}
