package dashboard

import (
	"testing"
	"time"
)

func TestGetMarketSession(t *testing.T) {
	tests := []struct {
		name     string
		timeStr  string // UTC, "2006-01-02 15:04:05"
		expected MarketSession
	}{
		{"Before pre-open", "2026-01-07 03:29:00", SessionClosed},    // 8:59 IST
		{"Pre-open", "2026-01-07 03:30:00", SessionPreOpen},          // 9:00 IST
		{"Pre-open late", "2026-01-07 03:44:00", SessionPreOpen},     // 9:14 IST
		{"Market open", "2026-01-07 03:45:00", SessionMarket},        // 9:15 IST
		{"Market mid", "2026-01-07 07:00:00", SessionMarket},         // 12:30 IST
		{"Market late", "2026-01-07 09:59:00", SessionMarket},        // 15:29 IST
		{"Post-close", "2026-01-07 10:00:00", SessionPostClose},      // 15:30 IST
		{"Post-close late", "2026-01-07 10:29:00", SessionPostClose}, // 15:59 IST
		{"After hours", "2026-01-07 10:30:00", SessionClosed},        // 16:00 IST
		{"Saturday", "2026-01-10 06:00:00", SessionClosed},
		{"Sunday", "2026-01-11 06:00:00", SessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testTime, err := time.Parse("2006-01-02 15:04:05", tt.timeStr)
			if err != nil {
				t.Fatalf("Failed to parse time: %v", err)
			}

			result := GetMarketSession(testTime)
			if result != tt.expected {
				t.Errorf("GetMarketSession(%v) = %v, want %v", testTime, result, tt.expected)
			}
		})
	}
}

func TestMarketSession_IsTrading(t *testing.T) {
	if !SessionMarket.IsTrading() || !SessionPreOpen.IsTrading() {
		t.Error("expected pre-open and market to be trading")
	}
	if SessionPostClose.IsTrading() || SessionClosed.IsTrading() {
		t.Error("expected post-close and closed not to be trading")
	}
}
