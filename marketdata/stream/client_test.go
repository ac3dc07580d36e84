package stream

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTicker struct {
	c chan time.Time
}

var _ pingTicker = (*testTicker)(nil)

func newTestTicker() *testTicker {
	return &testTicker{c: make(chan time.Time, 1)}
}

func (t *testTicker) C() <-chan time.Time { return t.c }

func (t *testTicker) Stop() {}

func (t *testTicker) Tick() { t.c <- time.Now() }

func TestConstructURL(t *testing.T) {
	for _, tt := range []struct {
		name     string
		baseURL  string
		expected string
	}{
		{
			name:     "ws",
			baseURL:  "ws://localhost:8000",
			expected: "ws://localhost:8000/ws/stock/track/?stock_picker=AAPL&stock_picker=MSFT",
		},
		{
			name:     "http",
			baseURL:  "http://localhost:8000",
			expected: "ws://localhost:8000/ws/stock/track/?stock_picker=AAPL&stock_picker=MSFT",
		},
		{
			name:     "https",
			baseURL:  "https://api.example.com",
			expected: "wss://api.example.com/ws/stock/track/?stock_picker=AAPL&stock_picker=MSFT",
		},
		{
			name:     "wss with path",
			baseURL:  "wss://api.example.com/v1",
			expected: "wss://api.example.com/v1/ws/stock/track/?stock_picker=AAPL&stock_picker=MSFT",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTickersClient("track", []string{"AAPL", "MSFT"}, WithBaseURL(tt.baseURL))
			u, err := c.constructURL()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u.String())
		})
	}
}

func TestConnectWithoutSymbols(t *testing.T) {
	c := NewTickersClient("track", nil)

	err := c.Connect(context.Background())

	require.ErrorIs(t, err, ErrNoSymbols)
}

func TestConnectWithInvalidURL(t *testing.T) {
	c := NewTickersClient("track", []string{"AAPL"},
		WithBaseURL("http://192.168.0.%31/"),
		WithReconnectSettings(1, 0))

	err := c.Connect(context.Background())

	require.Error(t, err)
}

func TestConnectCalledMultipleTimes(t *testing.T) {
	connection := newMockConn()
	defer connection.close()
	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(1, 0),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return connection, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := c.Connect(ctx)
	require.NoError(t, err)

	err = c.Connect(ctx)
	require.ErrorIs(t, err, ErrConnectCalledMultipleTimes)
}

func TestConnectFailsAfterReconnectLimit(t *testing.T) {
	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(2, 0),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return nil, errClose
		}))

	err := c.Connect(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "max reconnect limit has been reached")
}

func TestTickerUpdatesReachHandler(t *testing.T) {
	connection := newMockConn()
	defer connection.close()
	updates := make(chan TickerUpdate, 10)
	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(1, 0),
		WithTickerUpdates(func(u TickerUpdate) { updates <- u }),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return connection, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))

	connection.readCh <- []byte(`{"AAPL":{"price":123.45,"vol":"1000"}}`)

	select {
	case u := <-updates:
		assert.Equal(t, "AAPL", u.Symbol)
		require.NotNil(t, u.Price)
		assert.EqualValues(t, 123.45, *u.Price)
		require.NotNil(t, u.Volume)
		assert.EqualValues(t, 1000, *u.Volume)
		assert.Nil(t, u.Open)
	case <-time.After(time.Second):
		require.Fail(t, "no update received")
	}
}

func TestReconnectResubscribesSameSymbols(t *testing.T) {
	conns := make(chan *mockConn, 2)
	first := newMockConn()
	second := newMockConn()
	conns <- first
	conns <- second
	var dialedURLs []string

	updates := make(chan TickerUpdate, 10)
	c := NewTickersClient("track", []string{"AAPL", "MSFT"},
		WithReconnectSettings(0, 0),
		WithTickerUpdates(func(u TickerUpdate) { updates <- u }),
		withConnCreator(func(_ context.Context, u url.URL, _ string) (conn, error) {
			dialedURLs = append(dialedURLs, u.String())
			return <-conns, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))

	// Drop the first connection and verify the feed continues on the second
	first.close()

	connection := second
	connection.readCh <- []byte(`{"MSFT":{"price":1}}`)

	select {
	case u := <-updates:
		assert.Equal(t, "MSFT", u.Symbol)
	case <-time.After(time.Second):
		require.Fail(t, "no update received after reconnect")
	}

	require.Len(t, dialedURLs, 2)
	assert.Equal(t, dialedURLs[0], dialedURLs[1])
	second.close()
}

func TestCancelStopsMutations(t *testing.T) {
	connection := newMockConn()
	updates := make(chan TickerUpdate, 10)
	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(1, 0),
		WithTickerUpdates(func(u TickerUpdate) { updates <- u }),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return connection, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, c.Connect(ctx))

	cancel()

	select {
	case err := <-c.Terminated():
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "client did not terminate")
	}

	// A frame arriving after teardown must not reach the handler
	select {
	case connection.readCh <- []byte(`{"AAPL":{"price":1}}`):
	default:
	}
	select {
	case <-updates:
		require.Fail(t, "update applied after teardown")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPingFailureTerminates(t *testing.T) {
	connection := newMockConn()
	defer connection.close()

	ticker := newTestTicker()
	origNewPingTicker := newPingTicker
	newPingTicker = func() pingTicker { return ticker }
	defer func() { newPingTicker = origNewPingTicker }()

	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(1, 0),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return connection, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))

	// replacing connCreator with a new one that returns an error
	// so the connection will not be reestablished
	connErr := errors.New("no connection")
	c.connCreator = func(_ context.Context, _ url.URL, _ string) (conn, error) {
		return nil, connErr
	}
	// disabling ping (but not closing the connection altogether!)
	connection.pingDisabled = true
	// triggering a ping
	ticker.Tick()

	err := <-c.Terminated()
	require.Error(t, err)
	require.ErrorIs(t, err, connErr)
}

func TestCallbacksFire(t *testing.T) {
	connection := newMockConn()
	connected := make(chan struct{}, 16)
	disconnected := make(chan struct{}, 16)
	c := NewTickersClient("track", []string{"AAPL"},
		WithReconnectSettings(1, 0),
		WithConnectCallback(func() { connected <- struct{}{} }),
		WithDisconnectCallback(func() { disconnected <- struct{}{} }),
		withConnCreator(func(_ context.Context, _ url.URL, _ string) (conn, error) {
			return connection, nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))

	select {
	case <-connected:
	case <-time.After(time.Second):
		require.Fail(t, "connect callback did not fire")
	}

	connection.close()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		require.Fail(t, "disconnect callback did not fire")
	}
}
