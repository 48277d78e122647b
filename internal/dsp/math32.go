package dsp

import "math"

// sqrt32 wraps math.Sqrt for float32 operands. Kept as a thin wrapper,
// the way the teacher's approximations.go isolates libm calls that
// might later be replaced with a faster approximation.
func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// dbToVoltage converts a decibel value to a linear voltage ratio:
// 10^(db/20).
func dbToVoltage(db float64) float32 {
	return float32(math.Pow(10, db/20))
}

// cos32 and sin32 wrap the float64 trig functions for float32 operands,
// used by the oscillator's per-sample rotation increment.
func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }
func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }

// atan2_32 wraps math.Atan2 for float32 operands.
func atan2_32(y, x float32) float32 { return float32(math.Atan2(float64(y), float64(x))) }
