package marketdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client is the market data pull client.
type Client interface {
	// GetBars returns the full bar history of symbol. A server-reported
	// error payload is returned as an *APIError.
	GetBars(symbol string) ([]Bar, error)
	// GetLivePrices returns the latest prices snapshot from the alternate
	// polling endpoint.
	GetLivePrices() (*LivePrices, error)
}

// ClientOpts contains options for the market data client.
type ClientOpts struct {
	// SessionToken is attached as a bearer credential when set. The server
	// answers unauthenticated requests too, with whatever anonymous view it
	// provides.
	SessionToken string
	BaseURL      string
	Timeout      time.Duration
	RetryLimit   int
	RetryDelay   time.Duration
}

type client struct {
	opts ClientOpts

	do func(c *client, req *http.Request) (*http.Response, error)
}

// NewClient creates a new market data client using the given opts.
func NewClient(opts ClientOpts) Client {
	if opts.SessionToken == "" {
		opts.SessionToken = os.Getenv("INFERNO_SESSION_TOKEN")
	}
	if opts.BaseURL == "" {
		if s := os.Getenv("INFERNO_API_URL"); s != "" {
			opts.BaseURL = s
		} else {
			opts.BaseURL = "http://localhost:8000"
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryLimit == 0 {
		opts.RetryLimit = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	return &client{
		opts: opts,

		do: defaultDo,
	}
}

// DefaultClient uses options from environment variables, or the defaults.
var DefaultClient = NewClient(ClientOpts{})

func defaultDo(c *client, req *http.Request) (*http.Response, error) {
	if c.opts.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.SessionToken)
	}

	client := &http.Client{
		Timeout: c.opts.Timeout,
	}
	var resp *http.Response
	var err error
	for i := 0; ; i++ {
		resp, err = client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if i >= c.opts.RetryLimit {
			break
		}
		time.Sleep(c.opts.RetryDelay)
	}

	if err = verify(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// GetBars returns the full bar history of symbol.
func (c *client) GetBars(symbol string) ([]Bar, error) {
	u, err := url.Parse(fmt.Sprintf("%s/stock_chart_data/%s/", c.opts.BaseURL, symbol))
	if err != nil {
		return nil, err
	}

	resp, err := c.get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// The endpoint answers 200 with either a bar array or an error object.
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var apiErr APIError
		if err := json.Unmarshal(trimmed, &apiErr); err != nil || apiErr.Message == "" {
			return nil, fmt.Errorf("unexpected bar payload: %s", body)
		}
		return nil, &apiErr
	}

	var bars []Bar
	if err := json.Unmarshal(trimmed, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// GetLivePrices returns the latest prices snapshot.
func (c *client) GetLivePrices() (*LivePrices, error) {
	u, err := url.Parse(fmt.Sprintf("%s/get_live_prices/", c.opts.BaseURL))
	if err != nil {
		return nil, err
	}

	resp, err := c.get(u)
	if err != nil {
		return nil, err
	}

	prices := &LivePrices{}

	if err = unmarshal(resp, prices); err != nil {
		return nil, err
	}

	return prices, nil
}

func (c *client) get(u *url.URL) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	return c.do(c, req)
}

// APIError wraps the error message supplied by the backend for debugging
// purposes.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

func verify(resp *http.Response) error {
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		apiErr := APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			// If the error is not in our JSON format, we simply return the HTTP response
			return fmt.Errorf("HTTP %s: %s", resp.Status, body)
		}
		return &apiErr
	}
	return nil
}

func unmarshal(resp *http.Response, data interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(data)
}
