package blockchair

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayout is the format Blockchair uses for timestamps, always UTC.
const timeLayout = "2006-01-02 15:04:05"

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Context responseContext `json:"context"`
}

type responseContext struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type statsData struct {
	MarketPriceUSD *decimal.Decimal `json:"market_price_usd"`
}

type addressDashboard struct {
	Address      addressSummary `json:"address"`
	Transactions []txRecord     `json:"transactions"`
}

type addressSummary struct {
	TransactionCount int64 `json:"transaction_count"`
}

type txRecord struct {
	BlockID       int64    `json:"block_id"`
	Hash          string   `json:"hash"`
	Time          flexTime `json:"time"`
	BalanceChange int64    `json:"balance_change"`
}

// flexTime accepts either epoch seconds or a "2006-01-02 15:04:05" string.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if parsed, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.Unix(secs, 0).UTC()
			return nil
		}
		return fmt.Errorf("unrecognized time %q", s)
	}

	var secs json.Number
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("unrecognized time %s", b)
	}
	f, err := secs.Float64()
	if err != nil {
		return fmt.Errorf("unrecognized time %s", b)
	}
	t.Time = time.Unix(int64(f), 0).UTC()
	return nil
}

// isEmptyData reports whether a data field carries nothing. Blockchair
// returns an empty array instead of an object when it has no data.
func isEmptyData(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]"))
}
