package combat

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/udisondev/polycalc/internal/model"
)

// Toggle is a tri-state switch of FightConditions.
// Absent means the mechanic is not possible for this pairing.
type Toggle uint8

const (
	Absent Toggle = iota
	Off
	On
)

// Bool returns a present toggle for v.
func Bool(v bool) Toggle {
	if v {
		return On
	}
	return Off
}

func (t Toggle) IsOn() bool      { return t == On }
func (t Toggle) IsPresent() bool { return t != Absent }

// Flip switches a present toggle; Absent stays Absent.
func (t Toggle) Flip() Toggle {
	switch t {
	case On:
		return Off
	case Off:
		return On
	default:
		return Absent
	}
}

func (t Toggle) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return "absent"
	}
}

// MarshalJSON encodes a present toggle as a bool. Absent fields are dropped
// via omitempty on the owning struct.
func (t Toggle) MarshalJSON() ([]byte, error) {
	return json.Marshal(t == On)
}

func (t *Toggle) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	if v == nil {
		*t = Absent
		return nil
	}
	*t = Bool(*v)
	return nil
}

// ToggleKey names a FightConditions field in text forms.
type ToggleKey string

const (
	KeyBasic     ToggleKey = "isBasic"
	KeyIndirect  ToggleKey = "isIndirect"
	KeyRanged    ToggleKey = "isRanged"
	KeyTentacles ToggleKey = "isTentacles"
)

// AllToggleKeys returns the keys in field order.
func AllToggleKeys() []ToggleKey {
	return []ToggleKey{KeyBasic, KeyIndirect, KeyRanged, KeyTentacles}
}

// ParseToggleKey validates a key name.
func ParseToggleKey(s string) (ToggleKey, bool) {
	for _, k := range AllToggleKeys() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// FightConditions — состояние переключателей одной пары attacker/defender.
// Поле присутствует (не Absent) только если механика физически возможна.
type FightConditions struct {
	// Basic — обычная атака с возможной контратакой.
	Basic Toggle `json:"isBasic,omitempty"`
	// Indirect — splash/stomp/explosion, урон ×0.5, без контратаки.
	Indirect Toggle `json:"isIndirect,omitempty"`
	// Ranged — атака с дистанции, без контратаки.
	Ranged Toggle `json:"isRanged,omitempty"`
	// Tentacles — предварительный удар щупальцами.
	Tentacles Toggle `json:"isTentacles,omitempty"`
}

// Get returns the toggle for key.
func (fc FightConditions) Get(key ToggleKey) Toggle {
	switch key {
	case KeyBasic:
		return fc.Basic
	case KeyIndirect:
		return fc.Indirect
	case KeyRanged:
		return fc.Ranged
	case KeyTentacles:
		return fc.Tentacles
	default:
		return Absent
	}
}

// With returns a copy with the toggle for key replaced.
func (fc FightConditions) With(key ToggleKey, t Toggle) FightConditions {
	switch key {
	case KeyBasic:
		fc.Basic = t
	case KeyIndirect:
		fc.Indirect = t
	case KeyRanged:
		fc.Ranged = t
	case KeyTentacles:
		fc.Tentacles = t
	}
	return fc
}

// IsActive reports whether the cell produces any fight.
func (fc FightConditions) IsActive() bool {
	return fc.Basic.IsOn() || fc.Tentacles.IsOn()
}

// IsActiveDirect reports a basic fight that is not indirect.
func (fc FightConditions) IsActiveDirect() bool {
	return fc.Basic.IsOn() && !fc.Indirect.IsOn()
}

// Keys returns the names of the toggles that are on (array form).
func (fc FightConditions) Keys() []string {
	out := make([]string, 0, 4)
	for _, k := range AllToggleKeys() {
		if fc.Get(k).IsOn() {
			out = append(out, string(k))
		}
	}
	return out
}

// FromKeys builds conditions from the array form: listed keys are on, all
// others off. Unknown names are dropped with a warning. The result is meant
// as prev for CreateFightConditions, which removes inapplicable fields.
func FromKeys(keys []string) FightConditions {
	fc := FightConditions{Basic: Off, Indirect: Off, Ranged: Off, Tentacles: Off}
	for _, name := range keys {
		key, ok := ParseToggleKey(name)
		if !ok {
			slog.Warn("unknown fight toggle dropped", "key", name)
			continue
		}
		fc = fc.With(key, On)
	}
	return fc
}

// CreateFightConditions derives the toggles of a pairing.
//
// Applicability:
//   - tentacle attacker: only Tentacles (its primary toggle)
//   - otherwise Basic always, Indirect with splash/stomp/explode, Ranged with
//     range > 1, Tentacles when the defender has tentacles
//
// Each applicable field keeps prev's value if prev defines it, else takes the
// default. passive turns the primary toggle off.
func CreateFightConditions(attacker, defender model.Unit, prev *FightConditions, passive bool) FightConditions {
	var p FightConditions
	if prev != nil {
		p = *prev
	}

	pick := func(prevValue, def Toggle) Toggle {
		if prevValue.IsPresent() {
			return prevValue
		}
		return def
	}

	class := attacker.Class()
	if class.HasSkill(model.Tentacles) {
		return FightConditions{Tentacles: pick(p.Tentacles, Bool(!passive))}
	}

	fc := FightConditions{Basic: pick(p.Basic, Bool(!passive))}
	if class.IsIndirectSupported() {
		fc.Indirect = pick(p.Indirect, Off)
	}
	if class.IsRanged() {
		fc.Ranged = pick(p.Ranged, On)
	}
	if defender.Class().HasSkill(model.Tentacles) {
		fc.Tentacles = pick(p.Tentacles, Bool(!class.IsRanged()))
	}
	return fc
}

// UpdateFightConditions flips the toggle named by key.
// Flipping an absent toggle is a caller error: logged, prev returned as is.
func UpdateFightConditions(prev FightConditions, key ToggleKey) FightConditions {
	current := prev.Get(key)
	if !current.IsPresent() {
		slog.Warn("toggle not applicable to this fight", "key", key)
		return prev
	}
	return prev.With(key, current.Flip())
}
