package stream

import (
	"context"
	"net/url"
	"os"
	"time"
)

// Option is a configuration option for the TickersClient
type Option interface {
	apply(*options)
}

type options struct {
	logger             Logger
	baseURL            string
	sessionToken       string
	reconnectLimit     int
	reconnectDelay     time.Duration
	connectCallback    func()
	disconnectCallback func()
	processorCount     int
	bufferSize         int
	tickerHandler      func(TickerUpdate)

	// for testing only
	connCreator func(ctx context.Context, u url.URL, sessionToken string) (conn, error)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithLogger configures the logger
func WithLogger(logger Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

// WithBaseURL configures the base URL
func WithBaseURL(url string) Option {
	return newFuncOption(func(o *options) {
		o.baseURL = url
	})
}

// WithSessionToken configures the session credential that is attached to the
// connection request as a cookie. Without it the server serves the socket
// anonymously, which is not an error.
func WithSessionToken(token string) Option {
	return newFuncOption(func(o *options) {
		o.sessionToken = token
	})
}

// WithReconnectSettings configures how many consecutive connection
// errors should be accepted and the delay (that is multiplied by the number of consecutive errors)
// between retries. limit = 0 means the client will try restarting indefinitely.
func WithReconnectSettings(limit int, delay time.Duration) Option {
	return newFuncOption(func(o *options) {
		o.reconnectLimit = limit
		o.reconnectDelay = delay
	})
}

// WithConnectCallback runs the callback function after the streaming connection is setup.
func WithConnectCallback(callback func()) Option {
	return newFuncOption(func(o *options) {
		o.connectCallback = callback
	})
}

// WithDisconnectCallback runs the callback function after the streaming connection disconnects.
func WithDisconnectCallback(callback func()) Option {
	return newFuncOption(func(o *options) {
		o.disconnectCallback = callback
	})
}

// WithProcessors configures how many goroutines should process incoming
// messages. Increasing this past 1 means that the order of processing is not
// necessarily the same as the order of arrival the from server.
func WithProcessors(count int) Option {
	return newFuncOption(func(o *options) {
		o.processorCount = count
	})
}

// WithBufferSize sets the size for the buffer that is used for messages received
// from the server
func WithBufferSize(size int) Option {
	return newFuncOption(func(o *options) {
		o.bufferSize = size
	})
}

// WithTickerUpdates configures the handler that is called for every decoded
// per-symbol update. A Board's Apply method can be used directly.
func WithTickerUpdates(handler func(TickerUpdate)) Option {
	return newFuncOption(func(o *options) {
		o.tickerHandler = handler
	})
}

// WithGorillaConn switches the underlying websocket implementation from
// nhooyr to gorilla.
func WithGorillaConn() Option {
	return newFuncOption(func(o *options) {
		o.connCreator = newGorillaWebsocketConn
	})
}

func withConnCreator(connCreator func(ctx context.Context, u url.URL, sessionToken string) (conn, error)) Option {
	return newFuncOption(func(o *options) {
		o.connCreator = connCreator
	})
}

// defaultOptions are the default options for a client.
// Don't change this in a backward incompatible way!
func defaultOptions() *options {
	baseURL := "ws://localhost:8000"
	if s := os.Getenv("INFERNO_STREAM_URL"); s != "" {
		baseURL = s
	}

	return &options{
		logger:         DefaultLogger(),
		baseURL:        baseURL,
		sessionToken:   os.Getenv("INFERNO_SESSION_TOKEN"),
		reconnectLimit: 20,
		reconnectDelay: 150 * time.Millisecond,
		processorCount: 1,
		bufferSize:     4096,
		tickerHandler:  func(_ TickerUpdate) {},
		connCreator:    newNhooyrWebsocketConn,
	}
}

func (o *options) applyAll(opts ...Option) {
	for _, opt := range opts {
		opt.apply(o)
	}
}
