package boardlink

// A Curve linearly maps an input domain onto an output range.
type Curve struct {
	Name   string
	InMin  int
	InMax  int
	OutMin int
	OutMax int
}

var (
	// PWMCurve maps an 8-bit command value onto a 10-bit duty.
	PWMCurve = Curve{Name: "pwm", InMin: 0, InMax: 255, OutMin: 0, OutMax: 1023}

	// ServoCurve maps an angle onto a 16-bit duty at 50Hz (0.5ms..2.5ms pulses).
	ServoCurve = Curve{Name: "servo", InMin: 0, InMax: 180, OutMin: 1638, OutMax: 8192}
)

// Eval rescales v without clamping, so values outside the domain extrapolate.
func (c Curve) Eval(v int) int {
	return Rescale(v, c.InMin, c.InMax, c.OutMin, c.OutMax)
}

// Samples evaluates every integer of the domain.
func (c Curve) Samples() []float64 {
	values := make([]float64, 0, c.InMax-c.InMin+1)
	for v := c.InMin; v <= c.InMax; v++ {
		values = append(values, float64(c.Eval(v)))
	}
	return values
}

// Rescale maps v from [inMin,inMax] to [outMin,outMax], rounding half up.
func Rescale(v, inMin, inMax, outMin, outMax int) int {
	span := inMax - inMin
	if span == 0 {
		return outMin
	}

	num := (v - inMin) * (outMax - outMin)
	if num < 0 {
		return outMin - (-num+span/2)/span
	}
	return outMin + (num+span/2)/span
}
