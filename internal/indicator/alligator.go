package indicator

// AlligatorParams configures the three SMMA lines of the Alligator.
type AlligatorParams struct {
	JawPeriod   int `yaml:"jaw_period"`
	JawShift    int `yaml:"jaw_shift"`
	TeethPeriod int `yaml:"teeth_period"`
	TeethShift  int `yaml:"teeth_shift"`
	LipsPeriod  int `yaml:"lips_period"`
	LipsShift   int `yaml:"lips_shift"`
}

// DefaultAlligator returns jaw 15/8, teeth 8/5, lips 5/3.
func DefaultAlligator() AlligatorParams {
	return AlligatorParams{
		JawPeriod: 15, JawShift: 8,
		TeethPeriod: 8, TeethShift: 5,
		LipsPeriod: 5, LipsShift: 3,
	}
}

// Alligator returns jaw, teeth and lips aligned to closes. Each line is the
// SMMA of close moved forward by its shift, so the value at bar i is the
// SMMA as of bar i-shift.
func Alligator(closes []float64, p AlligatorParams) (jaw, teeth, lips []float64) {
	jaw = Shift(SMMASeries(closes, p.JawPeriod), p.JawShift)
	teeth = Shift(SMMASeries(closes, p.TeethPeriod), p.TeethShift)
	lips = Shift(SMMASeries(closes, p.LipsPeriod), p.LipsShift)
	return jaw, teeth, lips
}
