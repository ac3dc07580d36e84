package stream

import (
	"sort"
	"sync"
)

// Direction is the price movement derived from two consecutive updates.
type Direction int

const (
	// Flat means the price did not move, or there is no prior price to
	// compare against.
	Flat Direction = iota
	// Up means the latest price is higher than the previous one.
	Up
	// Down means the latest price is lower than the previous one.
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "flat"
}

// TickerState is the reconciled view of one symbol. Nil fields have never
// been reported by the feed; the display layer renders those as a
// placeholder. PrevPrice is kept only to derive Direction and is not part of
// the wire contract.
type TickerState struct {
	Symbol    string
	Price     *float64
	Open      *float64
	High      *float64
	Low       *float64
	Volume    *float64
	PrevPrice *float64
	Direction Direction
}

func (s TickerState) clone() TickerState {
	c := s
	c.Price = cloneFloat(s.Price)
	c.Open = cloneFloat(s.Open)
	c.High = cloneFloat(s.High)
	c.Low = cloneFloat(s.Low)
	c.Volume = cloneFloat(s.Volume)
	c.PrevPrice = cloneFloat(s.PrevPrice)
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// Board reconciles sparse ticker updates into per-symbol state. It is safe
// for concurrent use: Apply may be called from the stream client's processor
// goroutines while the display layer reads snapshots.
type Board struct {
	mu       sync.RWMutex
	tickers  map[string]*TickerState
	onChange func(TickerState)
}

// NewBoard returns an empty board. onChange, if not nil, is called with a
// snapshot of the symbol's state after every applied update.
func NewBoard(onChange func(TickerState)) *Board {
	return &Board{
		tickers:  map[string]*TickerState{},
		onChange: onChange,
	}
}

// Apply merges one update into the board. Only the fields present in the
// update are touched; every other field and every other symbol stays as it
// was. The price field additionally derives the movement direction by
// comparing against the stored price before overwriting it.
func (b *Board) Apply(u TickerUpdate) {
	b.mu.Lock()
	st, ok := b.tickers[u.Symbol]
	if !ok {
		st = &TickerState{Symbol: u.Symbol}
		b.tickers[u.Symbol] = st
	}

	if u.Price != nil {
		switch {
		case st.Price == nil || *u.Price == *st.Price:
			st.Direction = Flat
		case *u.Price > *st.Price:
			st.Direction = Up
		default:
			st.Direction = Down
		}
		st.PrevPrice = st.Price
		st.Price = cloneFloat(u.Price)
	}
	if u.Open != nil {
		st.Open = cloneFloat(u.Open)
	}
	if u.High != nil {
		st.High = cloneFloat(u.High)
	}
	if u.Low != nil {
		st.Low = cloneFloat(u.Low)
	}
	if u.Volume != nil {
		st.Volume = cloneFloat(u.Volume)
	}
	snapshot := st.clone()
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(snapshot)
	}
}

// Get returns a snapshot of one symbol's state.
func (b *Board) Get(symbol string) (TickerState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.tickers[symbol]
	if !ok {
		return TickerState{}, false
	}
	return st.clone(), true
}

// Symbols returns the sorted list of every symbol the board has seen.
func (b *Board) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	symbols := make([]string, 0, len(b.tickers))
	for s := range b.tickers {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
