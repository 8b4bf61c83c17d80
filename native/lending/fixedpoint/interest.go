package fixedpoint

import "github.com/holiman/uint256"

// CalculateLinearInterest returns the simple interest accumulation factor in
// ray for an annualised rate over the elapsed time. It returns RAY when no
// time has passed.
func CalculateLinearInterest(rate *uint256.Int, lastUpdate, now uint64) *uint256.Int {
	if now <= lastUpdate {
		return Ray()
	}
	accrued := Mul(rate, uint256.NewInt(now-lastUpdate))
	accrued.Div(accrued, secondsPerYear)
	return Add(ray, accrued)
}

// CalculateCompoundedInterest approximates (1 + rate/SecondsPerYear)^elapsed
// with the first three terms of the binomial expansion. The truncation
// slightly undercharges borrowers over long gaps.
func CalculateCompoundedInterest(rate *uint256.Int, lastUpdate, now uint64) *uint256.Int {
	if now <= lastUpdate {
		return Ray()
	}
	elapsed := now - lastUpdate
	exp := uint256.NewInt(elapsed)
	expMinusOne := uint256.NewInt(elapsed - 1)
	expMinusTwo := new(uint256.Int)
	if elapsed > 2 {
		expMinusTwo.SetUint64(elapsed - 2)
	}

	basePowerTwo := RayMul(rate, rate)
	basePowerTwo.Div(basePowerTwo, Mul(secondsPerYear, secondsPerYear))
	basePowerThree := RayMul(basePowerTwo, rate)
	basePowerThree.Div(basePowerThree, secondsPerYear)

	secondTerm := Mul(Mul(exp, expMinusOne), basePowerTwo)
	secondTerm.Rsh(secondTerm, 1)
	thirdTerm := Mul(Mul(Mul(exp, expMinusOne), expMinusTwo), basePowerThree)
	thirdTerm.Div(thirdTerm, uint256.NewInt(6))

	firstTerm := Mul(rate, exp)
	firstTerm.Div(firstTerm, secondsPerYear)

	return Add(Add(Add(ray, firstTerm), secondTerm), thirdTerm)
}
