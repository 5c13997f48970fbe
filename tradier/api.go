package tradier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xhhuango/json"
)

const (
	DefaultBaseURL = "https://api.tradier.com"
	dateLayout     = "2006-01-02"
)

// ErrStatus is returned when the API answers with a non-200 status.
var ErrStatus = errors.New("tradier: unexpected status")

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetQuotes fetches the price history of symbol between start and end.
// interval is daily, weekly or monthly.
func (c *Client) GetQuotes(ctx context.Context, symbol string, start, end time.Time, interval string) (*QuoteHistory, error) {
	if symbol == "" {
		return nil, fmt.Errorf("tradier: empty symbol")
	}
	if interval == "" {
		interval = "daily"
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", start.Format(dateLayout))
	q.Set("end", end.Format(dateLayout))
	q.Set("session_filter", "all")

	history := &QuoteHistory{}
	if err := c.get(ctx, "/v1/markets/history", q, history); err != nil {
		return nil, fmt.Errorf("quotes for %s: %w", symbol, err)
	}
	return history, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("tradier: bad url: %w", err)
	}
	u.RawQuery = query.Encode()

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	r.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	r.Header.Add("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(r)
	if err != nil {
		return fmt.Errorf("tradier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tradier: failed to decode response: %w", err)
	}
	return nil
}
