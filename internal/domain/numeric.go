package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimals. Non-finite inputs collapse to 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
