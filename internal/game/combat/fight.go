package combat

import "github.com/udisondev/polycalc/internal/model"

// Result holds both units after a fight.
type Result struct {
	Attacker model.Unit `json:"attacker"`
	Defender model.Unit `json:"defender"`
}

// Fight resolves one attack. Pure: same inputs, same outputs; never panics
// for catalog units.
//
// Order:
//  1. Tentacle pre-strike (simultaneous, from pre-strike health)
//  2. Basic fight, skipped if anyone died in step 1
//  3. Status transitions and retaliation
func Fight(attacker, defender model.Unit, conditions FightConditions) Result {
	if err := ValidateFight(attacker, defender, conditions); err != nil {
		return Result{Attacker: attacker, Defender: defender}
	}

	if conditions.Tentacles.IsOn() {
		attacker, defender = tentacleStrike(attacker, defender)
		if attacker.IsDead() || defender.IsDead() {
			return Result{Attacker: attacker, Defender: defender}
		}
	}

	if !basicApplies(attacker, conditions) {
		return Result{Attacker: attacker, Defender: defender}
	}

	return basicFight(attacker, defender, conditions)
}

// tentacleStrike — обе стороны с навыком tentacles бьют одновременно.
// Замороженный defender не бьёт. Статусы не меняются, контратаки нет.
func tentacleStrike(attacker, defender model.Unit) (model.Unit, model.Unit) {
	toDefender, toAttacker := 0, 0
	if attacker.Class().HasSkill(model.Tentacles) {
		toDefender = CalcTentacleDamage(attacker, defender)
	}
	if defender.Class().HasSkill(model.Tentacles) && !defender.Has(model.Freezed) {
		toAttacker = CalcTentacleDamage(defender, attacker)
	}
	return attacker.WithHealth(attacker.Health() - toAttacker),
		defender.WithHealth(defender.Health() - toDefender)
}

func basicFight(attacker, defender model.Unit, conditions FightConditions) Result {
	indirect := conditions.Indirect.IsOn()
	forces := CalcForces(attacker, defender)
	damage := CalcAttackDamage(forces, attacker.Attack(), indirect)
	counter := CalcRetaliationDamage(forces, defender.Class().Defense)

	skills := attacker.Class().Skills
	defConds := defender.Conditions().
		With(model.Boosted, false).
		With(model.Freezed, defender.Has(model.Freezed) || skills.Has(model.Freeze)).
		With(model.Poisoned, defender.Has(model.Poisoned) || skills.Has(model.Poison)).
		With(model.Converted, defender.Has(model.Converted) || skills.Has(model.Convert))
	newDefender := defender.Update(defender.Health()-damage, defConds)

	noRetaliation := newDefender.IsDead() ||
		newDefender.Has(model.Freezed) ||
		newDefender.Has(model.Converted) ||
		defender.Class().HasSkill(model.Stiff) ||
		skills.Has(model.Surprise) ||
		conditions.Ranged.IsOn() ||
		indirect

	attHealth := attacker.Health()
	attConds := attacker.Conditions().With(model.Boosted, false)
	if !noRetaliation {
		attHealth -= counter
		if defender.Class().HasSkill(model.Poison) {
			attConds = attConds.With(model.Poisoned, true)
		}
	}

	return Result{
		Attacker: attacker.Update(attHealth, attConds),
		Defender: newDefender,
	}
}
