package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FlowState is the order flow's current phase.
type FlowState int

const (
	// Idle means no submission is in progress; Submit may be called.
	Idle FlowState = iota
	// Validating means an intent is being checked locally.
	Validating
	// Submitting means an intent is on the wire and no second submission is
	// accepted until it resolves.
	Submitting
)

func (s FlowState) String() string {
	switch s {
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	}
	return "idle"
}

// Validation errors. These block a submission locally: no network call is
// made and the message can be shown to the user immediately.
var (
	// ErrNoSymbol is returned when no instrument is selected.
	ErrNoSymbol = errors.New("please select a stock and enter a quantity")
	// ErrBadQuantity is returned when the quantity is missing or not positive.
	ErrBadQuantity = errors.New("quantity must be a positive number")
	// ErrNoLimitPrice is returned for a limit order without a positive limit price.
	ErrNoLimitPrice = errors.New("please enter a price for the limit order")
	// ErrSubmissionInFlight is returned when Submit is called while an
	// earlier submission has not resolved yet. This is what keeps a double
	// click from producing duplicate fills.
	ErrSubmissionInFlight = errors.New("an order submission is already in progress")
	// ErrOrderFailed wraps submission failures the server supplied no
	// message for.
	ErrOrderFailed = errors.New("an error occurred while placing the order")
)

// Confirmation is the user-facing result of an accepted order.
type Confirmation struct {
	Order   *Order
	Message string
}

// OrderFlowOpts contains options for the order flow.
type OrderFlowOpts struct {
	// Client used for submissions. DefaultClient when nil.
	Client Client
	// Timeout bounds one submission round-trip. An expired submission is a
	// rejection: the account stays untouched. Defaults to 10 seconds.
	Timeout time.Duration
}

// OrderFlow validates and submits trade intents and applies server-confirmed
// results back into the shared account state.
//
// Idle → Validating → Submitting → confirmed or rejected → Idle. Only one
// submission may be in flight at a time; the flow stays usable after any
// failure.
type OrderFlow struct {
	client  Client
	account *Account
	timeout time.Duration

	mu    sync.Mutex
	state FlowState
}

// NewOrderFlow returns an order flow writing confirmed balances into account.
func NewOrderFlow(account *Account, opts OrderFlowOpts) *OrderFlow {
	if opts.Client == nil {
		opts.Client = DefaultClient
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &OrderFlow{
		client:  opts.Client,
		account: account,
		timeout: opts.Timeout,
	}
}

// State returns the flow's current phase.
func (f *OrderFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit runs one intent through the flow. Validation failures return before
// any network traffic. On success the server-reported balance is applied to
// the account verbatim; on any rejection the account is left untouched and
// the server's error text is returned when it supplied one.
//
// A response resolving after ctx is cancelled is discarded, not applied.
func (f *OrderFlow) Submit(ctx context.Context, req PlaceOrderRequest) (*Confirmation, error) {
	f.mu.Lock()
	if f.state != Idle {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	f.state = Validating
	f.mu.Unlock()

	if err := validate(req); err != nil {
		f.toIdle()
		return nil, err
	}

	f.mu.Lock()
	f.state = Submitting
	f.mu.Unlock()
	defer f.toIdle()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type placed struct {
		order *Order
		err   error
	}
	resultCh := make(chan placed, 1)
	go func() {
		order, err := f.client.PlaceOrder(req)
		resultCh <- placed{order: order, err: err}
	}()

	select {
	case <-ctx.Done():
		// The round-trip is abandoned; if it resolves later nobody applies it.
		return nil, fmt.Errorf("%w: %v", ErrOrderFailed, ctx.Err())
	case result := <-resultCh:
		if result.err != nil {
			var apiErr *APIError
			if errors.As(result.err, &apiErr) {
				return nil, apiErr
			}
			return nil, fmt.Errorf("%w: %v", ErrOrderFailed, result.err)
		}

		order := result.order
		f.account.setBalance(order.Balance)
		return &Confirmation{
			Order:   order,
			Message: confirmationMessage(req.Side, order),
		}, nil
	}
}

func (f *OrderFlow) toIdle() {
	f.mu.Lock()
	f.state = Idle
	f.mu.Unlock()
}

func validate(req PlaceOrderRequest) error {
	if req.Symbol == "" {
		return ErrNoSymbol
	}
	if req.Quantity <= 0 {
		return ErrBadQuantity
	}
	if req.Type == Limit && (req.LimitPrice == nil || *req.LimitPrice <= 0) {
		return ErrNoLimitPrice
	}
	return nil
}

func confirmationMessage(side Side, order *Order) string {
	if order.Message != "" {
		return order.Message
	}
	return fmt.Sprintf("Successfully %s %d shares of %s at $%s!",
		string(side), order.Quantity, order.Symbol, order.Price.StringFixed(2))
}
