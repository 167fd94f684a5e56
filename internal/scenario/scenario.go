// Package scenario is the serializable read-only form of a brawl:
// class ids, optional health and conditions, and per-cell toggle lists.
package scenario

import (
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/game/brawl"
	"github.com/udisondev/polycalc/internal/game/combat"
	"github.com/udisondev/polycalc/internal/model"
)

// MaxUnits limits each side of a scenario.
const MaxUnits = 32

// CodeLength is the length of a share code.
const CodeLength = 12

var ErrTooManyUnits = errors.New("too many units")

// Unit describes one unit of a scenario. Missing health means full health.
type Unit struct {
	ClassID    string   `yaml:"class_id" json:"classId"`
	VariantID  string   `yaml:"variant_id,omitempty" json:"variantId,omitempty"`
	Health     *int     `yaml:"health,omitempty" json:"health,omitempty"`
	Conditions []string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Scenario — сериализуемое описание brawl, достаточное для read-only отображения.
// Fights[i][j] — список включённых ключей (isBasic, isIndirect, ...) клетки attacker i / defender j.
type Scenario struct {
	VersionID string       `yaml:"version_id,omitempty" json:"versionId,omitempty"`
	Attackers []Unit       `yaml:"attackers" json:"attackers"`
	Defenders []Unit       `yaml:"defenders" json:"defenders"`
	Fights    [][][]string `yaml:"fights" json:"fights"`
}

// Validate rejects scenarios that are too large to compute.
// Everything else is repaired by Build.
func (s Scenario) Validate() error {
	if len(s.Attackers) > MaxUnits {
		return fmt.Errorf("%w: %d attackers (max %d)", ErrTooManyUnits, len(s.Attackers), MaxUnits)
	}
	if len(s.Defenders) > MaxUnits {
		return fmt.Errorf("%w: %d defenders (max %d)", ErrTooManyUnits, len(s.Defenders), MaxUnits)
	}
	return nil
}

// Build reconstructs the brawl of a scenario.
// Unknown ids are replaced by defaults with a warning; the fights matrix is
// padded or cut to the grid.
func Build(catalog *data.Catalog, sc Scenario) brawl.State {
	version := catalog.ResolveVersion(sc.VersionID)

	defenders := make([]model.Unit, 0, len(sc.Defenders))
	for _, u := range sc.Defenders {
		defenders = append(defenders, u.Resolve(version))
	}

	if len(sc.Fights) > len(sc.Attackers) {
		slog.Warn("scenario has more fight rows than attackers", "rows", len(sc.Fights), "attackers", len(sc.Attackers))
	}

	attackers := make([]brawl.Attacker, 0, len(sc.Attackers))
	for i, u := range sc.Attackers {
		var row [][]string
		if i < len(sc.Fights) {
			row = sc.Fights[i]
		}
		if len(row) != len(defenders) {
			slog.Warn("scenario fight row resized", "attacker", i, "cells", len(row), "defenders", len(defenders))
		}

		fights := make([]combat.FightConditions, len(defenders))
		for j := range defenders {
			var keys []string
			if j < len(row) {
				keys = row[j]
			}
			fights[j] = combat.FromKeys(keys)
		}
		attackers = append(attackers, brawl.Attacker{Unit: u.Resolve(version), Fights: fights})
	}

	return brawl.Restore(version, attackers, defenders)
}

// Resolve turns a scenario unit into a model unit of version.
func (u Unit) Resolve(version *data.Version) model.Unit {
	class := version.ResolveClass(u.ClassID)

	variant := class.DefaultVariant()
	if u.VariantID != "" {
		if v := class.Variant(u.VariantID); v != nil {
			variant = v
		} else {
			slog.Warn("unknown variant, using default", "class", class.ID, "variant", u.VariantID)
		}
	}

	var conditions model.ConditionMap
	for _, name := range u.Conditions {
		c, ok := model.ParseCondition(name)
		if !ok {
			slog.Warn("unknown condition dropped", "condition", name)
			continue
		}
		if c == model.WallBonus && class.IsNavalOnly() {
			slog.Warn("wall bonus dropped for naval unit", "class", class.ID)
			continue
		}
		conditions = conditions.With(c, true)
	}

	unit := model.NewFullHealthUnit(class, variant, conditions)
	if u.Health != nil {
		health := *u.Health
		if health > unit.MaxHealth() {
			slog.Warn("health above max clamped", "class", class.ID, "health", health, "max", unit.MaxHealth())
			health = unit.MaxHealth()
		}
		unit = unit.WithHealth(health)
	}
	return unit
}

// FromUnit is the inverse of Resolve. Health is omitted when full.
func FromUnit(u model.Unit) Unit {
	out := Unit{
		ClassID:    u.Class().ID,
		Conditions: u.Conditions().Names(),
	}
	if len(out.Conditions) == 0 {
		out.Conditions = nil
	}
	if u.Variant() != nil && u.Variant() != u.Class().DefaultVariant() {
		out.VariantID = u.Variant().ID
	}
	if u.Health() != u.MaxHealth() {
		h := u.Health()
		out.Health = &h
	}
	return out
}

// FromState captures a live brawl as a scenario.
func FromState(s brawl.State) Scenario {
	sc := Scenario{
		Attackers: make([]Unit, 0, len(s.Attackers)),
		Defenders: make([]Unit, 0, len(s.Defenders)),
		Fights:    make([][][]string, 0, len(s.Attackers)),
	}
	if s.Version != nil {
		sc.VersionID = s.Version.ID
	}
	for _, d := range s.Defenders {
		sc.Defenders = append(sc.Defenders, FromUnit(d))
	}
	for _, a := range s.Attackers {
		sc.Attackers = append(sc.Attackers, FromUnit(a.Unit))
		row := make([][]string, 0, len(a.Fights))
		for _, fc := range a.Fights {
			row = append(row, fc.Keys())
		}
		sc.Fights = append(sc.Fights, row)
	}
	return sc
}

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Code returns the share code: a prefix of the blake2b hash of the
// scenario's JSON form. Equal scenarios get equal codes.
func Code(sc Scenario) (string, error) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("encoding scenario: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return strings.ToLower(codeEncoding.EncodeToString(sum[:]))[:CodeLength], nil
}

// Example is the demo scenario shown on the start page.
func Example() Scenario {
	health := func(v int) *int { return &v }
	return Scenario{
		VersionID: "aquarion-rework",
		Attackers: []Unit{
			{ClassID: "bomber", Health: health(7)},
			{ClassID: "scout", Health: health(8)},
			{ClassID: "rammer"},
		},
		Defenders: []Unit{
			{ClassID: "defender", Health: health(13), Conditions: []string{"defenseBonus"}},
			{ClassID: "warrior", Health: health(8)},
		},
		Fights: [][][]string{
			{{"isBasic", "isRanged"}, {"isBasic", "isIndirect"}},
			{{}, {"isBasic", "isRanged"}},
			{{"isBasic"}, {}},
		},
	}
}
