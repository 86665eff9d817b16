package indicator

import "math"

// stochEpsilon keeps %K defined on a flat high-low range.
const stochEpsilon = 1e-12

// StochasticParams configures %K/%D.
type StochasticParams struct {
	KPeriod int `yaml:"k_period"`
	Smooth  int `yaml:"smooth"`
	DPeriod int `yaml:"d_period"`
}

// DefaultStochastic returns 14/3/3.
func DefaultStochastic() StochasticParams {
	return StochasticParams{KPeriod: 14, Smooth: 3, DPeriod: 3}
}

// Stochastic returns smoothed %K and %D. Raw %K is
// 100*(close-LL)/(HH-LL+eps) over KPeriod bars; a flat range yields 0.
// Values are clamped to [0,100].
func Stochastic(high, low, close []float64, p StochasticParams) (k, d []float64) {
	hh := RollingMax(high, p.KPeriod, p.KPeriod)
	ll := RollingMin(low, p.KPeriod, p.KPeriod)
	raw := nanSeries(len(close))
	for i := range close {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		v := 100 * (close[i] - ll[i]) / (hh[i] - ll[i] + stochEpsilon)
		raw[i] = math.Max(0, math.Min(100, v))
	}
	k = SMASeries(raw, p.Smooth)
	d = SMASeries(k, p.DPeriod)
	return k, d
}
