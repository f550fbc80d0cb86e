package marketplace

import "github.com/shopspring/decimal"

var (
	cents     = decimal.New(1, -2) // 0.01
	nineCents = decimal.NewFromInt(9)
	ten       = decimal.NewFromInt(10)
)

// RoundUpToNearestNine применяет "charm pricing": цена округляется до центов
// (банковское округление), затем двигается ВВЕРХ до ближайшего значения,
// у которого последняя цифра центов — девятка. 10.00 -> 10.09, 10.91 -> 10.99.
// Идемпотентна для цен, уже оканчивающихся на 9.
func RoundUpToNearestNine(price float64) float64 {
	d := decimal.NewFromFloat(price).RoundBank(2)

	// Расстояние вперёд до следующей девятки в пределах той же "десятицентовой" полосы.
	lastDigit := d.Div(cents).Mod(ten)
	dist := nineCents.Sub(lastDigit).Mul(cents)

	out, _ := d.Add(dist).Float64()
	return out
}
