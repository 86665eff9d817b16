package indicator

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the window sum is recomputed from
// the buffer on every update so long runs do not accumulate drift.
type SMA struct {
	period  int
	buf     []float64
	idx     int
	count   int
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(v float64) {
	s.buf[s.idx] = v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum(-1) / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Peek computes what Value() would be with an additional value without mutating state.
func (s *SMA) Peek(v float64) float64 {
	if s.count < s.period {
		return (s.sum(-1) + v) / float64(s.count+1)
	}
	// the slot at idx holds the oldest value and is replaced by v
	return (s.sum(s.idx) + v) / float64(s.period)
}

// sum adds up the buffer, skipping slot skip (-1 for none). Unfilled
// slots are zero.
func (s *SMA) sum(skip int) float64 {
	total := 0.0
	for i, v := range s.buf {
		if i != skip {
			total += v
		}
	}
	return total
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// SMASeries returns SMA(period) aligned to values; NaN before period-1.
func SMASeries(values []float64, period int) []float64 {
	return Stream(NewSMA(period), values)
}
