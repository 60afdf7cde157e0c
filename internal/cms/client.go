package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/spacetraveling/internal/privacy"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "spacetraveling/1.0"
	searchPath     = "/documents/search"
)

var (
	// ErrNotFound is returned when a lookup by uid matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidCursor is returned when a cursor is not a fetchable http(s) URL.
	ErrInvalidCursor = errors.New("invalid page cursor")
	// ErrNoMasterRef is returned when the API root lists no master ref.
	ErrNoMasterRef = errors.New("content api exposes no master ref")
)

// StatusError reports a non-200 answer from the content API.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", privacy.URL(e.URL), e.StatusCode)
}

// RequestObserver is notified after every content API request.
type RequestObserver interface {
	ObserveRequest(op string, err error, elapsed time.Duration)
}

// Client reads documents from a Prismic-style REST API.
type Client struct {
	endpoint    string
	accessToken string
	client      *http.Client
	observer    RequestObserver
	refs        singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithAccessToken authenticates requests to a private repository.
// Next-page cursors returned by the API already carry the token.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithObserver registers a request observer (metrics, tracing).
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client for the API rooted at endpoint
// (e.g. https://repo.cdn.prismic.io/api/v2).
func NewClient(endpoint string, timeout time.Duration, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("cms: endpoint is required")
	}
	if _, err := parseHTTPURL(endpoint); err != nil {
		return nil, fmt.Errorf("cms: endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API root this client reads from.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type apiRoot struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		Label       string `json:"label"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// MasterRef resolves the ref of the currently published content.
// Concurrent callers share one request; it is bounded by the client timeout
// rather than by any single caller's context.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.refs.DoChan("master", func() (any, error) {
		var root apiRoot
		if err := c.getJSON(shared, "ref", c.rootURL(), &root); err != nil {
			return "", err
		}
		for _, r := range root.Refs {
			if r.IsMasterRef {
				return r.Ref, nil
			}
		}
		return "", ErrNoMasterRef
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("cms: resolve master ref: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("cms: resolve master ref: %w", res.Err)
		}
		return res.Val.(string), nil
	}
}

// GetByType returns the first page of documents of the given type.
func (c *Client) GetByType(ctx context.Context, typeName string, pageSize int) (Page, error) {
	if strings.TrimSpace(typeName) == "" {
		return Page{}, errors.New("cms: type name is required")
	}
	if pageSize < 1 {
		return Page{}, fmt.Errorf("cms: page size must be at least 1, got %d", pageSize)
	}

	ref, err := c.MasterRef(ctx)
	if err != nil {
		return Page{}, err
	}

	q := fmt.Sprintf("[[at(document.type,%q)]]", typeName)
	var page Page
	if err := c.getJSON(ctx, "by_type", c.searchURL(ref, q, pageSize), &page); err != nil {
		return Page{}, fmt.Errorf("cms: get %s: %w", typeName, err)
	}
	return page, nil
}

// GetByUID returns the single document of typeName whose uid matches.
func (c *Client) GetByUID(ctx context.Context, typeName, uid string) (Record, error) {
	if strings.TrimSpace(uid) == "" {
		return Record{}, errors.New("cms: uid is required")
	}

	ref, err := c.MasterRef(ctx)
	if err != nil {
		return Record{}, err
	}

	q := fmt.Sprintf("[[at(my.%s.uid,%q)]]", typeName, uid)
	var page Page
	if err := c.getJSON(ctx, "by_uid", c.searchURL(ref, q, 1), &page); err != nil {
		return Record{}, fmt.Errorf("cms: get %s/%s: %w", typeName, uid, err)
	}
	if len(page.Results) == 0 {
		return Record{}, fmt.Errorf("cms: %s/%s: %w", typeName, uid, ErrNotFound)
	}
	return page.Results[0], nil
}

// FetchPage follows a next-page cursor. The cursor is treated as opaque apart
// from requiring it to be an absolute http(s) URL.
func (c *Client) FetchPage(ctx context.Context, cursor string) (Page, error) {
	if _, err := parseHTTPURL(cursor); err != nil {
		return Page{}, fmt.Errorf("cms: %w: %v", ErrInvalidCursor, redactURLError(err))
	}

	var page Page
	if err := c.getJSON(ctx, "next_page", cursor, &page); err != nil {
		return Page{}, fmt.Errorf("cms: fetch next page: %w", err)
	}
	return page, nil
}

func (c *Client) searchURL(ref, q string, pageSize int) string {
	params := url.Values{}
	params.Set("ref", ref)
	params.Set("q", q)
	params.Set("pageSize", strconv.Itoa(pageSize))
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}
	return c.endpoint + searchPath + "?" + params.Encode()
}

func (c *Client) rootURL() string {
	if c.accessToken == "" {
		return c.endpoint
	}
	return c.endpoint + "?" + url.Values{"access_token": {c.accessToken}}.Encode()
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, v any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRequest(op, err, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", redactURLError(err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return redactURLError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// redactURLError strips credentials from the URL that *url.Error prints.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = privacy.URL(ue.URL)
	}
	return err
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}
