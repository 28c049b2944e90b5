// README: HERE autocomplete client; implements search.Lookup.
package here

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rideflow/internal/types"
)

const DefaultBaseURL = "https://autocomplete.search.hereapi.com/v1"

type Options struct {
	BaseURL string
	APIKey  string
	// Center biases results; zero means no bias.
	Center types.Point
	// Country is an ISO 3166-1 alpha-3 code, e.g. "IND".
	Country  string
	Limit    int
	Language string
	Timeout  time.Duration
}

type Client struct {
	opts  Options
	httpc *http.Client
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{opts: opts, httpc: &http.Client{Timeout: opts.Timeout}}
}

type autocompleteResponse struct {
	Items []item `json:"items"`
}

type item struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Address  address   `json:"address"`
	Position *position `json:"position"`
}

type address struct {
	Label    string `json:"label"`
	Street   string `json:"street"`
	District string `json:"district"`
	City     string `json:"city"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Search implements search.Lookup.
func (c *Client) Search(ctx context.Context, text string) ([]types.Suggestion, error) {
	if c.opts.APIKey == "" {
		return nil, fmt.Errorf("%w: HERE_API_KEY is empty", types.ErrConfiguration)
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("apiKey", c.opts.APIKey)
	q.Set("limit", strconv.Itoa(c.opts.Limit))
	if c.opts.Center != (types.Point{}) {
		q.Set("at", c.opts.Center.String())
	}
	if c.opts.Country != "" {
		q.Set("in", "countryCode:"+c.opts.Country)
	}
	if c.opts.Language != "" {
		q.Set("lang", c.opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/autocomplete?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", types.ErrTransport, err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: here autocomplete: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: here autocomplete status %d: %s", types.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload autocompleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode here response: %v", types.ErrFormat, err)
	}

	out := make([]types.Suggestion, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.ID == "" || it.Title == "" {
			continue
		}
		s := types.Suggestion{ID: it.ID, Title: it.Title, Address: it.Address.display()}
		if it.Position != nil {
			s.Coordinates = types.Point{Lat: it.Position.Lat, Lng: it.Position.Lng}
		}
		out = append(out, s)
	}
	return out, nil
}

// display prefers the full label and falls back to street and locality.
func (a address) display() string {
	if a.Label != "" {
		return a.Label
	}
	locality := a.District
	if locality == "" {
		locality = a.City
	}
	if a.Street != "" && locality != "" {
		return a.Street + ", " + locality
	}
	return a.Street + locality
}
