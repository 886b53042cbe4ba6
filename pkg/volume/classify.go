package volume

import "math"

// ClassifyIntensities maps each voxel to a 0-255 membership of the band
// centred on peak. Membership is 255 at the peak, falls to 0 at low and high
// and is 0 outside them; signum shapes the fall-off (1 linear, larger values
// keep the plateau wider). A voxel exactly at low or high scores 0.
func (g *Grid) ClassifyIntensities(peak, low, high, signum float64) *Grid {
	out := g.Blank()
	if signum <= 0 {
		signum = 1
	}
	for idx := range out.Data {
		v := float64(g.Data[idx*g.Components])
		var d float64
		switch {
		case v >= peak && high > peak:
			d = (v - peak) / (high - peak)
		case v < peak && peak > low:
			d = (peak - v) / (peak - low)
		case v == peak:
			d = 0
		default:
			d = 1
		}
		if d >= 1 {
			continue
		}
		out.Data[idx] = float32(255 * (1 - math.Pow(d, signum)))
	}
	return out
}
