package combat

import (
	"math"

	"github.com/udisondev/polycalc/internal/model"
)

// Damage formula constants.
const (
	// DamageConstant scales the force share into hit points.
	DamageConstant = 4.5
	// IndirectCoefficient is applied to splash, stomp and explosion damage.
	IndirectCoefficient = 0.5
	// roundingEpsilon pushes exact .5 results up despite float error.
	roundingEpsilon = 1e-6
)

// Forces — силы сторон в базовом бою: attack/defense, масштабированные долей здоровья.
type Forces struct {
	Attack  float64
	Defense float64
}

// Total is the sum of both forces.
func (f Forces) Total() float64 {
	return f.Attack + f.Defense
}

// CalcForces computes the attacker and defender forces of a basic fight.
//
// Formula: aF = attack * hp/maxHp, dF = defense * hp/maxHp.
func CalcForces(attacker, defender model.Unit) Forces {
	return Forces{
		Attack:  attacker.Attack() * healthRatio(attacker),
		Defense: defender.Defense() * healthRatio(defender),
	}
}

func healthRatio(u model.Unit) float64 {
	maxHealth := u.MaxHealth()
	if maxHealth <= 0 {
		return 0
	}
	return float64(u.Health()) / float64(maxHealth)
}

// CalcAttackDamage returns damage dealt to the defender.
// Indirect damage is halved and floored after rounding.
func CalcAttackDamage(f Forces, attack float64, indirect bool) int {
	total := f.Total()
	if total <= 0 {
		return 0
	}
	damage := roundDamage(f.Attack / total * attack * DamageConstant)
	if indirect {
		damage = int(math.Floor(float64(damage) * IndirectCoefficient))
	}
	return damage
}

// CalcRetaliationDamage returns damage dealt back to the attacker.
// Uses the unmodified class defense of the defender, not the bonus defense.
func CalcRetaliationDamage(f Forces, classDefense float64) int {
	total := f.Total()
	if total <= 0 {
		return 0
	}
	return roundDamage(f.Defense / total * classDefense * DamageConstant)
}

// CalcTentacleDamage returns damage of a tentacle strike by striker on target.
// Strike power is the striker's class defense; the target resists with its
// modified defense. Health ratios apply the same way as in a basic fight.
func CalcTentacleDamage(striker, target model.Unit) int {
	power := striker.Class().Defense
	aF := power * healthRatio(striker)
	dF := target.Defense() * healthRatio(target)
	total := aF + dF
	if total <= 0 {
		return 0
	}
	return roundDamage(aF / total * power * DamageConstant)
}

func roundDamage(v float64) int {
	return int(math.Round(v + roundingEpsilon))
}
