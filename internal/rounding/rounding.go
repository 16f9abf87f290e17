// Package rounding implements the two rounding families the quote generator
// and venue client rely on: step-size rounding to a tick/lot size, and the
// significant-figures-plus-decimals rounding the venue's price/size rules
// require. Both are grounded in the source's tools/rounding.py; the Go
// versions route through shopspring/decimal so the floor/ceil/round step
// itself is exact, while keeping float64 in and out to match the teacher's
// own roundDownToTick/roundUpToTick helpers.
package rounding

import (
	"math"

	"github.com/shopspring/decimal"
)

// Floor rounds num down to the nearest multiple of stepSize.
func Floor(num, stepSize float64) float64 {
	if stepSize <= 0 {
		return num
	}
	d := decimal.NewFromFloat(num)
	step := decimal.NewFromFloat(stepSize)
	quotient := d.Div(step).Floor()
	result, _ := quotient.Mul(step).Round(decimalPlaces(stepSize)).Float64()
	return result
}

// Ceil rounds num up to the nearest multiple of stepSize.
func Ceil(num, stepSize float64) float64 {
	if stepSize <= 0 {
		return num
	}
	d := decimal.NewFromFloat(num)
	step := decimal.NewFromFloat(stepSize)
	quotient := d.Div(step).Ceil()
	result, _ := quotient.Mul(step).Round(decimalPlaces(stepSize)).Float64()
	return result
}

// Discrete rounds num to the nearest multiple of stepSize.
func Discrete(num, stepSize float64) float64 {
	if stepSize <= 0 {
		return num
	}
	d := decimal.NewFromFloat(num)
	step := decimal.NewFromFloat(stepSize)
	quotient := d.Div(step).Round(0)
	result, _ := quotient.Mul(step).Round(decimalPlaces(stepSize)).Float64()
	return result
}

// decimalPlaces returns ceil(-log10(stepSize)), the precision the source
// keeps after multiplying the rounded quotient back out by the step size.
func decimalPlaces(stepSize float64) int32 {
	if stepSize <= 0 {
		return 0
	}
	places := int32(math.Ceil(-math.Log10(stepSize)))
	if places < 0 {
		places = 0
	}
	return places
}

// HlRoundFloor rounds num to at most sigFigs significant figures and at most
// decimals decimal places, flooring the last retained digit. Mirrors the
// venue's own price-formatting rule (hl_round_floor).
func HlRoundFloor(num float64, sigFigs, decimals int) float64 {
	return hlRound(num, sigFigs, decimals, true)
}

// HlRoundCeil is HlRoundFloor's ceiling counterpart (hl_round_ceil).
func HlRoundCeil(num float64, sigFigs, decimals int) float64 {
	return hlRound(num, sigFigs, decimals, false)
}

func hlRound(num float64, sigFigs, decimals int, floor bool) float64 {
	if num == 0 {
		return 0
	}
	abs := math.Abs(num)
	scale := math.Pow(10, float64(sigFigs)-math.Floor(math.Log10(abs))-1)
	var sigRounded float64
	if floor {
		sigRounded = math.Floor(num*scale) / scale
	} else {
		sigRounded = math.Ceil(num*scale) / scale
	}
	d := decimal.NewFromFloat(sigRounded)
	if floor {
		d = d.RoundFloor(int32(decimals))
	} else {
		d = d.RoundCeil(int32(decimals))
	}
	result, _ := d.Float64()
	return result
}
