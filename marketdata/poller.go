package marketdata

import (
	"context"
	"sync"
	"time"
)

// Logger is the logging seam of the poller. It is satisfied by the same
// implementations as the stream package's Logger.
type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// PollerOpts contains options for the bar history poller.
type PollerOpts struct {
	// Client used for the pull requests. DefaultClient when nil.
	Client Client
	// Interval between polls. Defaults to 2 seconds.
	Interval time.Duration
	// Logger for skipped cycles. Silent when nil.
	Logger Logger
	// OnUpdate is called with the full ascending series snapshot after every
	// successful merge. The renderer consumes whole snapshots, not diffs.
	OnUpdate func(symbol string, bars []Bar)
}

// Poller periodically pulls the full bar history of one symbol and merges
// each batch into a canonical series. A poll failure skips that cycle and
// keeps the last good series; the cadence itself never dies from a bad
// response.
//
// Responses can resolve out of issue order on a slow network, so every
// request carries a sequence number and a response older than the newest
// applied one is discarded. Switching symbols invalidates everything still in
// flight for the old symbol.
type Poller struct {
	client   Client
	interval time.Duration
	logger   Logger
	onUpdate func(string, []Bar)

	mu          sync.Mutex
	symbol      string
	series      *BarSeries
	generation  uint64
	nextSeq     uint64
	lastApplied uint64
	applied     bool
	stopped     bool
	cancel      context.CancelFunc
}

// NewPoller returns a poller for symbol. It does nothing until Start is
// called.
func NewPoller(symbol string, opts PollerOpts) *Poller {
	if opts.Client == nil {
		opts.Client = DefaultClient
	}
	if opts.Interval == 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Poller{
		client:   opts.Client,
		interval: opts.Interval,
		logger:   opts.Logger,
		onUpdate: opts.OnUpdate,
		symbol:   symbol,
		series:   NewBarSeries(),
	}
}

// Start begins the cadence: one poll immediately, then one per interval.
// The cadence stops when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	p.pollOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce issues one request in the background. Requests may overlap when
// the network is slower than the interval; the sequence check in apply keeps
// the series from going backwards.
func (p *Poller) pollOnce() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	gen := p.generation
	p.nextSeq++
	seq := p.nextSeq
	symbol := p.symbol
	p.mu.Unlock()

	go func() {
		bars, err := p.client.GetBars(symbol)
		p.apply(gen, seq, symbol, bars, err)
	}()
}

func (p *Poller) apply(gen, seq uint64, symbol string, bars []Bar, err error) {
	p.mu.Lock()
	if p.stopped || gen != p.generation {
		// The cadence was torn down or retargeted while this response was in
		// flight. Late resolutions are a no-op.
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		p.logger.Warnf("barpoller: skipping cycle for %s, error: %v", symbol, err)
		return
	}
	if p.applied && seq < p.lastApplied {
		p.mu.Unlock()
		p.logger.Infof("barpoller: discarding stale response %d for %s", seq, symbol)
		return
	}
	p.lastApplied = seq
	p.applied = true
	p.series.Merge(bars)
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(symbol, p.series.Sorted())
	}
}

// SetSymbol retargets the cadence to another symbol. The series is reset and
// any in-flight response for the previous symbol is discarded, so two symbols
// never write into the same series.
func (p *Poller) SetSymbol(symbol string) {
	p.mu.Lock()
	if symbol == p.symbol {
		p.mu.Unlock()
		return
	}
	p.symbol = symbol
	p.generation++
	p.nextSeq = 0
	p.lastApplied = 0
	p.applied = false
	p.series.Reset()
	p.mu.Unlock()

	p.pollOnce()
}

// Stop ends the cadence. Responses that resolve afterwards are ignored.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Series returns the current ascending snapshot.
func (p *Poller) Series() []Bar {
	return p.series.Sorted()
}

// Symbol returns the symbol currently polled.
func (p *Poller) Symbol() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.symbol
}
