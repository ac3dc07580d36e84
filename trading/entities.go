package trading

import (
	"sync"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// PlaceOrderRequest is one trade intent as the order endpoint expects it.
// LimitPrice is required iff Type is Limit.
type PlaceOrderRequest struct {
	Symbol     string
	Quantity   int64
	Type       OrderType
	LimitPrice *int64
	Side       Side
}

// Order is a server-confirmed fill. Price and Balance come back as the
// authoritative values; the balance is never recomputed locally from
// quantity and price.
type Order struct {
	Message  string          `json:"message"`
	Quantity int64           `json:"quantity"`
	Symbol   string          `json:"stock"`
	Price    decimal.Decimal `json:"price"`
	Balance  decimal.Decimal `json:"balance"`
}

// LoginRequest carries the credential fields of the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the session credential issued on a successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// Account is the process-wide account state shared between the order flow
// and the display layer. Its balance only ever changes as a direct function
// of a confirmed order result (or initial seeding by the caller).
type Account struct {
	mu      sync.RWMutex
	balance decimal.Decimal
}

// NewAccount returns an account seeded with balance.
func NewAccount(balance decimal.Decimal) *Account {
	return &Account{balance: balance}
}

// Balance returns the last server-confirmed balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

func (a *Account) setBalance(balance decimal.Decimal) {
	a.mu.Lock()
	a.balance = balance
	a.mu.Unlock()
}
