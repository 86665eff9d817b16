package indicator

import (
	"testing"

	talib "github.com/markcheno/go-talib"
)

// TA-Lib seeds EMA with the SMA of the first period values, the same rule
// used here, and reports 0 during warm-up.

func TestEMA_AgreesWithTALib(t *testing.T) {
	values := syntheticCloses(500)
	for _, period := range []int{5, 20, 150} {
		want := talib.Ema(values, period)
		got := EMASeries(values, period)
		for i := period - 1; i < len(values); i++ {
			assertClose(t, "EMA vs talib", got[i], want[i], 1e-9)
		}
	}
}

func TestSMA_AgreesWithTALib(t *testing.T) {
	values := syntheticCloses(200)
	for _, period := range []int{3, 14, 20} {
		want := talib.Sma(values, period)
		got := SMASeries(values, period)
		for i := period - 1; i < len(values); i++ {
			assertClose(t, "SMA vs talib", got[i], want[i], 1e-9)
		}
	}
}
