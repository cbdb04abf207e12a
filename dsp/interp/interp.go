package interp

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// Hermite4At samples x at the fractional position pos using Hermite4.
// Indices outside x are clamped to the nearest edge sample.
func Hermite4At(x []float64, pos float64) float64 {
	if len(x) == 0 {
		return 0
	}
	idx := int(pos)
	if pos < 0 && float64(idx) != pos {
		idx--
	}
	frac := pos - float64(idx)
	return Hermite4(frac,
		clampAt(x, idx-1),
		clampAt(x, idx),
		clampAt(x, idx+1),
		clampAt(x, idx+2),
	)
}

func clampAt(x []float64, idx int) float64 {
	if idx < 0 {
		return x[0]
	}
	if idx >= len(x) {
		return x[len(x)-1]
	}
	return x[idx]
}
