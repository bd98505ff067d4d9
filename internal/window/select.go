// Package window picks the strikes shown around the at-the-money strike.
package window

import (
	"math"
	"sort"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

// HighOIMultiplier is how far above the window mean a side's OI must be for
// a strike to survive the high-OI filter
const HighOIMultiplier = 1.5

// Result is a selected window. Strikes is a copy; mutating it does not touch
// the snapshot it came from.
type Result struct {
	Strikes []models.Strike `json:"strikes"`
	// ATMStrike is the strike price closest to the underlying
	ATMStrike float64 `json:"atm_strike"`
	// ATMIndex is the position of ATMStrike within Strikes
	ATMIndex int `json:"atm_index"`
	// Start and End bound the unfiltered window in the source list, End exclusive
	Start int `json:"start"`
	End   int `json:"end"`
	// Filtered is set when the high-OI filter removed at least one strike
	Filtered bool `json:"filtered"`
}

// FindATMIndex returns the index of the strike nearest to underlying. Ties go
// to the first (lowest) strike. It returns -1 for an empty list.
func FindATMIndex(strikes []models.Strike, underlying float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range strikes {
		if d := math.Abs(s.StrikePrice - underlying); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Select returns up to cfg.WindowSize strikes centred on the ATM strike.
//
// The lower-priced side gets floor((n-1)/2) strikes and the higher side
// ceil((n-1)/2). When one side runs into the end of the list the window
// slides the other way, so it keeps its full size unless the list itself is
// shorter. With HighOIOnly the window is further reduced to strikes whose
// call or put OI exceeds HighOIMultiplier times the window mean; the ATM
// strike is always kept.
func Select(strikes []models.Strike, underlying float64, cfg models.WindowConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(strikes) == 0 {
		return nil, models.NewDataError("strikes", "empty strike list")
	}

	atm := FindATMIndex(strikes, underlying)
	if atm < 0 {
		return nil, models.NewDataError("underlying_price", "no strike is comparable to the underlying")
	}
	start, end := bounds(len(strikes), atm, cfg.WindowSize)

	window := make([]models.Strike, end-start)
	copy(window, strikes[start:end])

	res := &Result{
		Strikes:   window,
		ATMStrike: strikes[atm].StrikePrice,
		ATMIndex:  atm - start,
		Start:     start,
		End:       end,
	}
	if cfg.HighOIOnly {
		res.applyHighOI()
	}
	return res, nil
}

// bounds returns the half-open [start, end) window around atm
func bounds(n, atm, size int) (int, int) {
	if n <= size {
		return 0, n
	}

	above := (size - 1) / 2
	below := size - 1 - above
	start := atm - above
	end := atm + below + 1

	// slide away from whichever edge was crossed
	if start < 0 {
		end -= start
		start = 0
	}
	if end > n {
		start -= end - n
		end = n
	}
	if start < 0 {
		start = 0
	}

	// guard: re-centre and trim if compensation ever overshoots
	if end-start > size {
		start = atm - above
		if start < 0 {
			start = 0
		}
		end = start + size
		if end > n {
			end = n
			start = n - size
		}
	}
	return start, end
}

func (r *Result) applyHighOI() {
	if len(r.Strikes) == 0 {
		return
	}

	var sumCall, sumPut float64
	for _, s := range r.Strikes {
		sumCall += float64(s.CallOI())
		sumPut += float64(s.PutOI())
	}
	count := float64(len(r.Strikes))
	callCut := HighOIMultiplier * sumCall / count
	putCut := HighOIMultiplier * sumPut / count

	kept := make([]models.Strike, 0, len(r.Strikes))
	atmKept := false
	for _, s := range r.Strikes {
		if float64(s.CallOI()) > callCut || float64(s.PutOI()) > putCut {
			kept = append(kept, s)
			if s.StrikePrice == r.ATMStrike {
				atmKept = true
			}
		}
	}
	if !atmKept {
		kept = append(kept, r.Strikes[r.ATMIndex])
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].StrikePrice < kept[j].StrikePrice
		})
	}
	if len(kept) == 0 {
		return
	}

	r.Filtered = len(kept) < len(r.Strikes)
	r.Strikes = kept
	for i, s := range kept {
		if s.StrikePrice == r.ATMStrike {
			r.ATMIndex = i
			break
		}
	}
}
