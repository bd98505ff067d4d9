package dashboard

import (
	"time"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

// MarketSession is the exchange trading phase
type MarketSession string

const (
	SessionPreOpen   MarketSession = "preopen"
	SessionMarket    MarketSession = "market"
	SessionPostClose MarketSession = "postclose"
	SessionClosed    MarketSession = "closed"
)

// GetMarketSession returns the NSE/BSE equity derivatives phase at t.
// Exchange holidays are not known here and read as a normal weekday.
//   - Pre-open: 9:00 to 9:15 IST
//   - Market: 9:15 to 15:30 IST
//   - Post-close: 15:30 to 16:00 IST
func GetMarketSession(t time.Time) MarketSession {
	local := t.In(models.IST)

	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 9*60 && minutes < 9*60+15:
		return SessionPreOpen
	case minutes >= 9*60+15 && minutes < 15*60+30:
		return SessionMarket
	case minutes >= 15*60+30 && minutes < 16*60:
		return SessionPostClose
	default:
		return SessionClosed
	}
}

// IsTrading reports whether quotes are expected to move
func (s MarketSession) IsTrading() bool {
	return s == SessionPreOpen || s == SessionMarket
}
