package marketplace

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
)

// SourceClient is the capability the ingestion task polls. Transport and
// auth details stay behind this interface.
type SourceClient interface {
	FetchPage(ctx context.Context, query Query, page int) (*Page, error)
}

// Client fetches paginated listing records from the marketplace HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

var _ SourceClient = (*Client)(nil)

func NewClient(baseURL, apiKey, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  userAgent,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

func (c *Client) FetchPage(ctx context.Context, query Query, page int) (*Page, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, c.buildURL(query, page), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result Page
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse listings response: %w", err)
	}

	return &result, nil
}

func (c *Client) buildURL(query Query, page int) string {
	params := url.Values{}
	if len(query.Categories) > 0 {
		params.Set("categories", strings.Join(query.Categories, ","))
	}
	if query.MinDiscount > 0 {
		params.Set("min_discount", strconv.Itoa(query.MinDiscount))
	}
	if query.MinReviews > 0 {
		params.Set("min_reviews", strconv.Itoa(query.MinReviews))
		params.Set("has_reviews", "true")
	}
	params.Set("page", strconv.Itoa(page))

	return c.baseURL + "?" + params.Encode()
}
