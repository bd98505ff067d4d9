package window

import (
	"testing"

	"github.com/mohamedkhairy/strikeview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladder(prices ...float64) []models.Strike {
	out := make([]models.Strike, len(prices))
	for i, p := range prices {
		out[i] = models.Strike{
			StrikePrice: p,
			Call:        &models.StrikeQuote{StrikePrice: p, OpenInterest: 100},
			Put:         &models.StrikeQuote{StrikePrice: p, OpenInterest: 100},
		}
	}
	return out
}

func evenLadder(n int, first, step float64) []models.Strike {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = first + float64(i)*step
	}
	return ladder(prices...)
}

func prices(strikes []models.Strike) []float64 {
	out := make([]float64, len(strikes))
	for i, s := range strikes {
		out[i] = s.StrikePrice
	}
	return out
}

func TestFindATMIndex(t *testing.T) {
	strikes := ladder(100, 110, 120, 130)

	tests := []struct {
		name       string
		underlying float64
		want       int
	}{
		{"exact", 120, 2},
		{"nearest below", 113, 1},
		{"nearest above", 127, 3},
		{"tie goes to lower strike", 115, 1},
		{"below ladder", 10, 0},
		{"above ladder", 1000, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindATMIndex(strikes, tt.underlying))
		})
	}

	assert.Equal(t, -1, FindATMIndex(nil, 100))
}

func TestSelect_Scenario(t *testing.T) {
	strikes := ladder(23700, 23750, 23800, 23850, 23900)

	res, err := Select(strikes, 23810, models.WindowConfig{WindowSize: 3})
	require.NoError(t, err)

	assert.Equal(t, []float64{23750, 23800, 23850}, prices(res.Strikes))
	assert.Equal(t, 23800.0, res.ATMStrike)
	assert.Equal(t, 1, res.ATMIndex)
	assert.Equal(t, 1, res.Start)
	assert.Equal(t, 4, res.End)
	assert.False(t, res.Filtered)
}

func TestSelect_Centering(t *testing.T) {
	strikes := evenLadder(41, 1000, 10)
	atmPrice := 1200.0

	for size := 3; size <= 20; size++ {
		res, err := Select(strikes, atmPrice, models.WindowConfig{WindowSize: size})
		require.NoError(t, err)
		require.Len(t, res.Strikes, size)

		lower := res.ATMIndex
		higher := len(res.Strikes) - 1 - res.ATMIndex
		assert.Equal(t, (size-1)/2, lower, "size %d lower side", size)
		assert.Equal(t, size-1-(size-1)/2, higher, "size %d higher side", size)
	}
}

func TestSelect_SizeInvariant(t *testing.T) {
	for n := 1; n <= 30; n++ {
		strikes := evenLadder(n, 100, 5)
		for size := 3; size <= 20; size++ {
			for _, u := range []float64{0, 100, 101, 100 + float64(n)*2.5, 100 + float64(n-1)*5, 10000} {
				res, err := Select(strikes, u, models.WindowConfig{WindowSize: size})
				require.NoError(t, err)

				want := size
				if n < size {
					want = n
				}
				require.Len(t, res.Strikes, want, "n=%d size=%d u=%v", n, size, u)

				atm := FindATMIndex(strikes, u)
				assert.Equal(t, strikes[atm].StrikePrice, res.Strikes[res.ATMIndex].StrikePrice)
				assert.Equal(t, strikes[res.Start:res.End], res.Strikes)
			}
		}
	}
}

func TestSelect_BoundaryCompensation(t *testing.T) {
	strikes := evenLadder(10, 100, 10) // 100..190

	t.Run("low edge", func(t *testing.T) {
		res, err := Select(strikes, 100, models.WindowConfig{WindowSize: 5})
		require.NoError(t, err)
		assert.Equal(t, []float64{100, 110, 120, 130, 140}, prices(res.Strikes))
		assert.Equal(t, 0, res.ATMIndex)
	})

	t.Run("high edge", func(t *testing.T) {
		res, err := Select(strikes, 185, models.WindowConfig{WindowSize: 5})
		require.NoError(t, err)
		// 180 and 190 tie; the lower wins
		assert.Equal(t, 180.0, res.ATMStrike)
		assert.Equal(t, []float64{150, 160, 170, 180, 190}, prices(res.Strikes))
		assert.Equal(t, 3, res.ATMIndex)
	})

	t.Run("list shorter than window", func(t *testing.T) {
		res, err := Select(strikes[:4], 120, models.WindowConfig{WindowSize: 7})
		require.NoError(t, err)
		assert.Equal(t, []float64{100, 110, 120, 130}, prices(res.Strikes))
	})
}

func TestSelect_DoesNotAlias(t *testing.T) {
	strikes := evenLadder(5, 100, 10)
	res, err := Select(strikes, 120, models.WindowConfig{WindowSize: 3})
	require.NoError(t, err)

	res.Strikes[0].StrikePrice = -1
	assert.Equal(t, 110.0, strikes[1].StrikePrice)
}

func TestSelect_HighOIOnly(t *testing.T) {
	strikes := evenLadder(7, 100, 10) // 100..160
	callOI := []int64{10, 10, 10, 10, 500, 10, 10}
	putOI := []int64{10, 600, 10, 10, 10, 10, 10}
	for i := range strikes {
		strikes[i].Call.OpenInterest = callOI[i]
		strikes[i].Put.OpenInterest = putOI[i]
	}

	res, err := Select(strikes, 130, models.WindowConfig{WindowSize: 7, HighOIOnly: true})
	require.NoError(t, err)

	// 110 (put) and 140 (call) pass; ATM 130 is reinserted
	assert.Equal(t, []float64{110, 130, 140}, prices(res.Strikes))
	assert.Equal(t, 1, res.ATMIndex)
	assert.Equal(t, 130.0, res.ATMStrike)
	assert.True(t, res.Filtered)
}

func TestSelect_HighOIOnly_AbsentSideCountsAsZero(t *testing.T) {
	strikes := evenLadder(3, 100, 10)
	strikes[0].Put = nil
	strikes[2].Call = nil
	strikes[2].Put.OpenInterest = 1000

	res, err := Select(strikes, 110, models.WindowConfig{WindowSize: 3, HighOIOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{110, 120}, prices(res.Strikes))
}

func TestSelect_HighOIOnly_FlatLadderKeepsATM(t *testing.T) {
	strikes := evenLadder(5, 100, 10)

	res, err := Select(strikes, 120, models.WindowConfig{WindowSize: 5, HighOIOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{120}, prices(res.Strikes))
	assert.Equal(t, 0, res.ATMIndex)
}

func TestSelect_Errors(t *testing.T) {
	_, err := Select(nil, 100, models.WindowConfig{WindowSize: 5})
	assert.ErrorIs(t, err, models.ErrData)

	_, err = Select(evenLadder(5, 100, 10), 100, models.WindowConfig{WindowSize: 2})
	assert.ErrorIs(t, err, models.ErrConfig)
}
