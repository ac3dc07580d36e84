package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/infernohq/inferno-trade-go/internal/ctxtime"
)

// TickersClient is a client that connects to the push feed of the trading
// backend and consumes live ticker updates for a fixed set of symbols.
//
// After constructing, Connect() must be called before any data arrives.
// Connect keeps the connection alive and reestablishes it until a configured
// number of retries has been exceeded. Every reconnect resubscribes the exact
// symbol set the client was constructed with: the subscription is part of the
// connect URL and never changes for the life of the client.
//
// Terminated() returns a channel that the client sends an error to when it
// has terminated. A client can not be reused once it has terminated!
type TickersClient struct {
	logger Logger

	baseURL      string
	topic        string
	symbols      []string
	sessionToken string

	reconnectLimit     int
	reconnectDelay     time.Duration
	processorCount     int
	bufferSize         int
	connectCallback    func()
	disconnectCallback func()

	connectOnce    sync.Once
	terminatedChan chan error
	conn           conn
	in             chan []byte

	handlerMu sync.RWMutex
	handler   func(TickerUpdate)

	connCreator func(ctx context.Context, u url.URL, sessionToken string) (conn, error)
}

// NewTickersClient returns a new TickersClient that will subscribe to topic
// for the given symbols and whose default configurations are modified by opts.
func NewTickersClient(topic string, symbols []string, opts ...Option) *TickersClient {
	o := defaultOptions()
	o.applyAll(opts...)

	return &TickersClient{
		logger:             o.logger,
		baseURL:            o.baseURL,
		topic:              topic,
		symbols:            symbols,
		sessionToken:       o.sessionToken,
		reconnectLimit:     o.reconnectLimit,
		reconnectDelay:     o.reconnectDelay,
		processorCount:     o.processorCount,
		bufferSize:         o.bufferSize,
		connectCallback:    o.connectCallback,
		disconnectCallback: o.disconnectCallback,
		terminatedChan:     make(chan error, 1),
		handler:            o.tickerHandler,
		connCreator:        o.connCreator,
	}
}

// Connect establishes a connection and reestablishes it when errors occur as
// long as the configured number of retries has not been exceeded.
//
// It blocks until the connection has been established for the first time (or
// it failed to do so).
//
// Should only be called once!
func (c *TickersClient) Connect(ctx context.Context) error {
	if len(c.symbols) == 0 {
		return ErrNoSymbols
	}
	u, err := c.constructURL()
	if err != nil {
		return err
	}

	err = ErrConnectCalledMultipleTimes
	c.connectOnce.Do(func() {
		err = c.connectAndMaintainConnection(ctx, u)
		if err != nil {
			c.terminatedChan <- err
			close(c.terminatedChan)
		}
	})
	return err
}

// Terminated returns a channel that the client sends an error to when it has
// terminated. The channel is also closed upon termination.
func (c *TickersClient) Terminated() <-chan error {
	return c.terminatedChan
}

// SetHandler replaces the update handler. It is safe to call while the client
// is connected.
func (c *TickersClient) SetHandler(handler func(TickerUpdate)) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// constructURL builds the connect target:
// ws(s)://<host>/ws/stock/<topic>/?stock_picker=<SYM1>&stock_picker=<SYM2>&...
func (c *TickersClient) constructURL() (url.URL, error) {
	scheme := "wss"
	ub, err := url.Parse(c.baseURL)
	if err != nil {
		return url.URL{}, err
	}
	switch ub.Scheme {
	case "http", "ws":
		scheme = "ws"
	}

	q := url.Values{"stock_picker": c.symbols}

	return url.URL{
		Scheme:   scheme,
		Host:     ub.Host,
		Path:     ub.Path + "/ws/stock/" + c.topic + "/",
		RawQuery: q.Encode(),
	}, nil
}

func (c *TickersClient) connectAndMaintainConnection(ctx context.Context, u url.URL) error {
	initialResultCh := make(chan error)
	go c.maintainConnection(ctx, u, initialResultCh)
	return <-initialResultCh
}

// maintainConnection initializes a connection to u, starts the necessary goroutines
// and recreates them if there was an error as long as reconnectLimit consecutive
// connection initialization errors don't occur. It sends the first connection
// initialization's result to initialResultCh.
func (c *TickersClient) maintainConnection(ctx context.Context, u url.URL, initialResultCh chan<- error) {
	var connError error
	failedAttemptsInARow := 0
	connectedAtLeastOnce := false

	defer func() {
		// if we haven't connected at least once then Connect should close the channel
		if connectedAtLeastOnce {
			close(c.terminatedChan)
		}
	}()

	sendError := func(err error) {
		if !connectedAtLeastOnce {
			initialResultCh <- err
		} else {
			c.terminatedChan <- err
		}
	}

	for {
		select {
		case <-ctx.Done():
			if !connectedAtLeastOnce {
				c.logger.Warnf("tickerstream: cancelled before connection could be established, last error: %v", connError)
				err := fmt.Errorf("cancelled before connection could be established, last error: %w", connError)
				initialResultCh <- err
			} else {
				c.terminatedChan <- nil
			}
			return
		default:
			if c.reconnectLimit != 0 && failedAttemptsInARow >= c.reconnectLimit {
				c.logger.Errorf("tickerstream: max reconnect limit has been reached, last error: %v", connError)
				e := fmt.Errorf("max reconnect limit has been reached, last error: %w", connError)
				sendError(e)
				return
			}
			if err := ctxtime.Sleep(ctx, time.Duration(failedAttemptsInARow)*c.reconnectDelay); err != nil {
				continue
			}
			failedAttemptsInARow++
			c.logger.Infof("tickerstream: connecting to %s, attempt %d/%d ...", u.String(), failedAttemptsInARow, c.reconnectLimit)
			conn, err := c.connCreator(ctx, u, c.sessionToken)
			if err != nil {
				connError = err
				c.logger.Warnf("tickerstream: failed to connect, error: %v", err)
				continue
			}
			c.conn = conn

			c.logger.Infof("tickerstream: established connection")
			connError = nil
			if !connectedAtLeastOnce {
				initialResultCh <- nil
				connectedAtLeastOnce = true
			}
			failedAttemptsInARow = 0
			if c.connectCallback != nil {
				c.connectCallback()
			}

			c.in = make(chan []byte, c.bufferSize)
			wg := sync.WaitGroup{}
			wg.Add(c.processorCount + 2)
			closeCh := make(chan struct{})
			for i := 0; i < c.processorCount; i++ {
				go c.messageProcessor(ctx, &wg)
			}
			go c.connPinger(ctx, &wg, closeCh)
			go c.connReader(ctx, &wg, closeCh)
			wg.Wait()
			if c.disconnectCallback != nil {
				c.disconnectCallback()
			}
			if ctx.Err() != nil {
				c.logger.Infof("tickerstream: disconnected")
			} else {
				c.logger.Warnf("tickerstream: connection lost")
			}
		}
	}
}

var newPingTicker = func() pingTicker {
	return &timeTicker{ticker: time.NewTicker(pingPeriod)}
}

// connPinger periodically calls c.conn.ping to ensure the connection is still alive
func (c *TickersClient) connPinger(ctx context.Context, wg *sync.WaitGroup, closeCh <-chan struct{}) {
	ticker := newPingTicker()
	defer func() {
		ticker.Stop()
		c.conn.close()
		wg.Done()
	}()

	for {
		select {
		case <-closeCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := c.conn.ping(ctx); err != nil {
				if ctx.Err() == nil {
					c.logger.Errorf("tickerstream: ping failed, error: %v", err)
				}
				return
			}
		}
	}
}

// connReader reads from c.conn and sends those messages to c.in.
// It is also responsible for closing closeCh that terminates the pinger
// and also for closing c.in which terminates messageProcessors.
func (c *TickersClient) connReader(
	ctx context.Context,
	wg *sync.WaitGroup,
	closeCh chan<- struct{},
) {
	defer func() {
		close(closeCh)
		c.conn.close()
		close(c.in)
		wg.Done()
	}()

	for {
		msg, err := c.conn.readMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Errorf("tickerstream: reading from conn failed, error: %v", err)
			}
			return
		}

		c.in <- msg
	}
}

// messageProcessor reads from c.in (while it's open) and processes the messages
func (c *TickersClient) messageProcessor(
	ctx context.Context,
	wg *sync.WaitGroup,
) {
	defer func() {
		wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.in:
			if !ok {
				return
			}
			err := c.handleMessage(msg)
			if err != nil {
				c.logger.Errorf("tickerstream: could not handle message, error: %v", err)
			}
		}
	}
}
