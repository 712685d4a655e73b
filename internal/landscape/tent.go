package landscape

import "math"

// Tent evaluates the tent function of a persistence pair at t:
// max(0, min(t-birth, death-t)). An essential pair (death = +Inf) rises
// without bound after its birth.
func Tent(t, birth, death float64) float64 {
	return math.Max(0, math.Min(t-birth, death-t))
}

// TentGrad returns the partial derivatives of Tent with respect to birth and
// death. Both are zero at the apex and outside the open support.
func TentGrad(t, birth, death float64) (dBirth, dDeath float64) {
	if birthActive(t, birth, death) {
		dBirth = -1
	}
	if deathActive(t, birth, death) {
		dDeath = 1
	}
	return dBirth, dDeath
}

// birthActive reports birth < t < (birth+death)/2.
func birthActive(t, birth, death float64) bool {
	return t > birth && 2*t < birth+death
}

// deathActive reports (birth+death)/2 < t < death.
func deathActive(t, birth, death float64) bool {
	return t < death && 2*t > birth+death
}
