package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TickerUpdate is one symbol's slice of a pushed frame. The feed is sparse:
// a nil field means the server did not report it this tick, not that it
// became empty.
type TickerUpdate struct {
	Symbol string
	Price  *float64
	Open   *float64
	High   *float64
	Low    *float64
	Volume *float64
}

// number tolerates both JSON numbers and numeric strings, the feed sends both.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadMessage, string(b))
	}
	*n = number(f)
	return nil
}

type wireTicker struct {
	Price  *number `json:"price"`
	Open   *number `json:"open"`
	High   *number `json:"high"`
	Low    *number `json:"low"`
	Volume *number `json:"vol"`
}

// handleMessage decodes a pushed frame, a JSON object keyed by symbol, and
// hands each symbol's update to the configured handler. Symbols the caller
// never subscribed to are passed through as well: dropping them here would
// make behavior depend on the order the subscription and the first update
// race each other.
func (c *TickersClient) handleMessage(b []byte) error {
	var frame map[string]wireTicker
	if err := json.Unmarshal(b, &frame); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	for symbol, values := range frame {
		handler(TickerUpdate{
			Symbol: symbol,
			Price:  asFloat(values.Price),
			Open:   asFloat(values.Open),
			High:   asFloat(values.High),
			Low:    asFloat(values.Low),
			Volume: asFloat(values.Volume),
		})
	}
	return nil
}

func asFloat(n *number) *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}
