package data

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// NSEPayload is the NSE option-chain response as relayed by the proxy. The
// proxy either passes "records" through at the top level or wraps it in a
// {success, data: {records}} envelope; both are accepted.
type NSEPayload struct {
	Success *bool       `json:"success,omitempty"`
	Error   string      `json:"error,omitempty"`
	Symbol  string      `json:"symbol"`
	Expiry  string      `json:"expiry"`
	Records *NSERecords `json:"records"`
	Data    *struct {
		Records *NSERecords `json:"records"`
	} `json:"data"`
}

// records returns whichever records block is present
func (p *NSEPayload) records() *NSERecords {
	if p.Records != nil {
		return p.Records
	}
	if p.Data != nil {
		return p.Data.Records
	}
	return nil
}

// NSERecords is the "records" block
type NSERecords struct {
	Data            []NSERow    `json:"data"`
	ExpiryDates     []string    `json:"expiryDates"`
	UnderlyingValue interface{} `json:"underlyingValue"`
	Timestamp       string      `json:"timestamp"`
}

// NSERow is one strike, already split into CE and PE objects
type NSERow struct {
	StrikePrice interface{} `json:"strikePrice"`
	ExpiryDate  interface{} `json:"expiryDate"`
	// v3 responses carry the row expiry as a string under this name
	ExpiryDates interface{} `json:"expiryDates"`
	CE          *NSEQuote   `json:"CE"`
	PE          *NSEQuote   `json:"PE"`
}

// expiry returns the row-level expiry string, "" when absent
func (r *NSERow) expiry() string {
	if s := stringOf(r.ExpiryDate); s != "" {
		return s
	}
	if s := stringOf(r.ExpiryDates); s != "" {
		return s
	}
	for _, q := range []*NSEQuote{r.CE, r.PE} {
		if q != nil {
			if s := stringOf(q.ExpiryDate); s != "" {
				return s
			}
		}
	}
	return ""
}

// NSEQuote is one side of an NSE row. Numbers arrive as JSON numbers or
// strings depending on the endpoint, so every numeric field is decoded loosely.
type NSEQuote struct {
	StrikePrice          interface{} `json:"strikePrice"`
	ExpiryDate           interface{} `json:"expiryDate"`
	OpenInterest         interface{} `json:"openInterest"`
	ChangeInOpenInterest interface{} `json:"changeinOpenInterest"`
	TotalTradedVolume    interface{} `json:"totalTradedVolume"`
	LastPrice            interface{} `json:"lastPrice"`
	Change               interface{} `json:"change"`
	ImpliedVolatility    interface{} `json:"impliedVolatility"`
	BidQty               interface{} `json:"bidQty"`
	BidPrice             interface{} `json:"bidprice"`
	AskQty               interface{} `json:"askQty"`
	AskPrice             interface{} `json:"askPrice"`
	UnderlyingValue      interface{} `json:"underlyingValue"`
}

// BSEPayload is the BSE option-chain response as relayed by the proxy
type BSEPayload struct {
	Success *bool    `json:"success,omitempty"`
	Error   string   `json:"error,omitempty"`
	Symbol  string   `json:"symbol"`
	Expiry  string   `json:"expiry"`
	Source  string   `json:"source"`
	Data    *BSEData `json:"data"`
}

// BSEData is the "data" block
type BSEData struct {
	Table       []BSERow    `json:"Table"`
	ASON        *BSEAsOn    `json:"ASON"`
	UlaValue    interface{} `json:"UlaValue"`
	ExpiryDates []string    `json:"expiryDates"`
}

// BSEAsOn carries the display timestamp, e.g. "07 Jan 2026 | 19:11 "
type BSEAsOn struct {
	DateTime string `json:"DT_TM"`
}

// BSERow is one flat strike row. Call fields carry a C_ prefix, put fields
// use the bare names. All numbers are comma-formatted strings or "".
type BSERow struct {
	StrikePrice  interface{} `json:"Strike_Price"`
	StrikePrice1 interface{} `json:"Strike_Price1"`
	EndTimeStamp interface{} `json:"End_TimeStamp"`
	UlaValue     interface{} `json:"UlaValue"`

	CallOpenInterest interface{} `json:"C_Open_Interest"`
	CallChangeOI     interface{} `json:"C_Absolute_Change_OI"`
	CallVolume       interface{} `json:"C_Vol_Traded"`
	CallLastPrice    interface{} `json:"C_Last_Trd_Price"`
	CallNetChange    interface{} `json:"C_NetChange"`
	CallIV           interface{} `json:"C_IV"`
	CallBidQty       interface{} `json:"C_BIdQty"`
	CallBidPrice     interface{} `json:"C_BidPrice"`
	CallOfferPrice   interface{} `json:"C_OfferPrice"`
	CallOfferQty     interface{} `json:"C_OfferQty"`

	PutOpenInterest interface{} `json:"Open_Interest"`
	PutChangeOI     interface{} `json:"Absolute_Change_OI"`
	PutVolume       interface{} `json:"Vol_Traded"`
	PutLastPrice    interface{} `json:"Last_Trd_Price"`
	PutNetChange    interface{} `json:"NetChange"`
	PutIV           interface{} `json:"IV"`
	PutBidQty       interface{} `json:"BIdQty"`
	PutBidPrice     interface{} `json:"BidPrice"`
	PutOfferPrice   interface{} `json:"OfferPrice"`
	PutOfferQty     interface{} `json:"OfferQty"`
}

func stringOf(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []interface{}, map[string]interface{}:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// commaString renders v the way BSE does: grouped thousands, two decimals
func commaString(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
