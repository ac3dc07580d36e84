package trading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client is the trading client.
type Client interface {
	// Login exchanges credentials for a session token. On success the token
	// is also retained by the client and attached to subsequent requests.
	Login(req LoginRequest) (*LoginResponse, error)
	// PlaceOrder submits an order request to buy or sell an instrument. A
	// server-rejected order is returned as an *APIError carrying the
	// server's message verbatim.
	PlaceOrder(req PlaceOrderRequest) (*Order, error)
}

// ClientOpts contains options for the trading client.
//
// The backend's credential scheme differs per deployment: some fronts expect
// the session as a bearer token, some as a CSRF header next to a session
// cookie. Both knobs are provided and whatever is set gets attached.
type ClientOpts struct {
	SessionToken string
	CSRFToken    string
	BaseURL      string
	Timeout      time.Duration
	RetryLimit   int
	RetryDelay   time.Duration
}

type client struct {
	opts ClientOpts

	do func(c *client, req *http.Request) (*http.Response, error)
}

// NewClient creates a new trading client using the given opts.
func NewClient(opts ClientOpts) Client {
	if opts.SessionToken == "" {
		opts.SessionToken = os.Getenv("INFERNO_SESSION_TOKEN")
	}
	if opts.CSRFToken == "" {
		opts.CSRFToken = os.Getenv("INFERNO_CSRF_TOKEN")
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

func (c *client) attachCredentials(req *http.Request) {
	if c.opts.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.SessionToken)
	}
	if c.opts.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.opts.CSRFToken)
	}
}

func defaultDo(c *client, req *http.Request) (*http.Response, error) {
	c.attachCredentials(req)

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

// Login exchanges credentials for a session token.
func (c *client) Login(req LoginRequest) (*LoginResponse, error) {
	u, err := url.Parse(fmt.Sprintf("%s/login/", c.opts.BaseURL))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c, httpReq)
	if err != nil {
		return nil, err
	}

	login := &LoginResponse{}

	if err = unmarshal(resp, login); err != nil {
		return nil, err
	}

	c.opts.SessionToken = login.Token

	return login, nil
}

// PlaceOrder submits an order request to buy or sell an instrument.
func (c *client) PlaceOrder(req PlaceOrderRequest) (*Order, error) {
	u, err := url.Parse(fmt.Sprintf("%s/place_order/", c.opts.BaseURL))
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("stock_symbol", req.Symbol)
	form.Set("quantity", strconv.FormatInt(req.Quantity, 10))
	form.Set("order_type", string(req.Type))
	if req.LimitPrice != nil {
		form.Set("price", strconv.FormatInt(*req.LimitPrice, 10))
	}
	form.Set("action", string(req.Side))

	httpReq, err := http.NewRequest(http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(c, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// A rejected order comes back as 200 with an error field.
	var rejection APIError
	if err := json.Unmarshal(body, &rejection); err == nil && rejection.Message != "" {
		return nil, &rejection
	}

	order := &Order{}
	if err := json.Unmarshal(body, order); err != nil {
		return nil, err
	}

	return order, nil
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
