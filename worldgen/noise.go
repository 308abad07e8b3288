package worldgen

import "math"

// Noise is sampled from world coordinates, never by walking an RNG,
// so any region generates the same regardless of order

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Value1D is smoothed value noise in [0,1) along x with the given period in tiles
func Value1D(seed uint32, x int, period float64) float64 {
	fx := float64(x) / period
	x0 := math.Floor(fx)
	t := smooth(fx - x0)
	a := unit(Hash2(seed, int32(x0), 0))
	b := unit(Hash2(seed, int32(x0)+1, 0))
	return lerp(a, b, t)
}

// Value2D is smoothed value noise in [0,1) with the given period in tiles
func Value2D(seed uint32, x, y int, period float64) float64 {
	fx, fy := float64(x)/period, float64(y)/period
	x0, y0 := math.Floor(fx), math.Floor(fy)
	tx, ty := smooth(fx-x0), smooth(fy-y0)
	ix, iy := int32(x0), int32(y0)

	top := lerp(unit(Hash2(seed, ix, iy)), unit(Hash2(seed, ix+1, iy)), tx)
	bottom := lerp(unit(Hash2(seed, ix, iy+1)), unit(Hash2(seed, ix+1, iy+1)), tx)
	return lerp(top, bottom, ty)
}

// Fractal2D sums octaves of Value2D, normalized back to [0,1)
func Fractal2D(seed uint32, x, y int, period float64, octaves int) float64 {
	sum, amp, norm := 0.0, 1.0, 0.0
	for o := 0; o < octaves; o++ {
		sum += Value2D(seed+uint32(o)*0x632be5ab, x, y, period) * amp
		norm += amp
		amp *= 0.5
		period /= 2
		if period < 1 {
			break
		}
	}
	return sum / norm
}
