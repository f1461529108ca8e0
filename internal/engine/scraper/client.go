package scraper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/model"
)

const (
	defaultBaseURL   = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultPageDelay = 2 * time.Second
	defaultTimeout   = 15 * time.Second
)

// Searcher queries the provider around a point. maxPages bounds the
// pagination depth; a later-page failure returns the pages already fetched
// together with the error.
type Searcher interface {
	Search(ctx context.Context, keyword string, lat, lng, radiusM float64, maxPages int) ([]model.Place, error)
}

// CallRecorder receives every successful raw provider response.
type CallRecorder interface {
	Record(keyword string, lat, lng, radiusM float64, response []byte)
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the Nearby Search endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient replaces the HTTP client. Transport options are ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithPageDelay sets the wait before each follow-up page. The provider needs
// a moment before a next_page_token becomes valid.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pageDelay = d
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client. It
// has no effect together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithChromeTLS sends requests with a Chrome TLS fingerprint.
func WithChromeTLS() Option {
	return func(c *Client) {
		c.chromeTLS = true
	}
}

// WithProxy routes requests through an HTTP proxy.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithCallRecorder logs each raw response.
func WithCallRecorder(r CallRecorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Client calls the Places Nearby Search API.
type Client struct {
	apiKey    string
	baseURL   string
	pageDelay time.Duration
	timeout   time.Duration
	chromeTLS bool
	proxyURL  string
	http      *http.Client
	recorder  CallRecorder
	log       *zap.Logger
}

// NewClient creates a Nearby Search client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		pageDelay: defaultPageDelay,
		timeout:   defaultTimeout,
		log:       zap.L().With(zap.String("component", "provider")),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		transport, err := newTransport(c.chromeTLS, c.proxyURL)
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{Transport: transport, Timeout: c.timeout}
	}
	return c, nil
}

// Search fetches up to maxPages pages of results.
func (c *Client) Search(ctx context.Context, keyword string, lat, lng, radiusM float64, maxPages int) ([]model.Place, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	var (
		all   []model.Place
		token string
	)
	for page := 1; page <= maxPages; page++ {
		if token != "" {
			select {
			case <-ctx.Done():
				return all, &ProviderError{Page: page, Err: ctx.Err()}
			case <-time.After(c.pageDelay):
			}
		}

		body, err := c.fetch(ctx, page, keyword, lat, lng, radiusM, token)
		if err != nil {
			return all, err
		}
		if c.recorder != nil {
			c.recorder.Record(keyword, lat, lng, radiusM, body)
		}

		np, err := ParseNearbyResponse(body)
		if err != nil {
			providerRequestsTotal.WithLabelValues("status_error").Inc()
			return all, &ProviderError{Page: page, Err: err}
		}
		if !np.Usable() {
			providerRequestsTotal.WithLabelValues("status_error").Inc()
			return all, &ProviderError{Page: page, Status: np.Status, Message: np.ErrorMessage}
		}
		providerRequestsTotal.WithLabelValues("ok").Inc()

		all = append(all, np.Places...)
		c.log.Debug("page fetched",
			zap.String("keyword", keyword),
			zap.Int("page", page),
			zap.Int("results", len(np.Places)),
			zap.Bool("has_more", np.NextPageToken != ""),
		)

		token = np.NextPageToken
		if token == "" {
			break
		}
	}
	return all, nil
}

func (c *Client) fetch(ctx context.Context, page int, keyword string, lat, lng, radiusM float64, token string) ([]byte, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("radius", strconv.FormatFloat(radiusM, 'f', -1, 64))
	params.Set("keyword", keyword)
	if token != "" {
		params.Set("pagetoken", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Page: page, Err: eris.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	providerRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		providerRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &ProviderError{Page: page, Err: eris.Wrap(err, "send request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		providerRequestsTotal.WithLabelValues("http_error").Inc()
		return nil, &ProviderError{Page: page, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		providerRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &ProviderError{Page: page, Err: eris.Wrap(err, "read response")}
	}
	return body, nil
}
