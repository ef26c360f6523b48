package directory

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evalfun/zonesync/mlog"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIPath is where the NetBox DNS plugin mounts its collections.
	DefaultAPIPath = "api/plugins/netbox-dns/"

	// DefaultTokenScheme is the NetBox authorization scheme.
	DefaultTokenScheme = "Token"

	maxErrorBody = 64 << 10
)

type Opts struct {
	Logger *zap.Logger

	// APIPath is joined onto the base url. Default is DefaultAPIPath.
	APIPath string

	// TokenScheme prefixes the token in the Authorization header,
	// e.g. "Token" or "Bearer". Default is DefaultTokenScheme.
	TokenScheme string

	// Timeout for a whole request. Zero means no timeout.
	Timeout time.Duration

	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64

	InsecureSkipVerify bool
}

// Client talks to the directory REST API. A single Client, and with it a
// single http session, is meant to be used for a whole run.
type Client struct {
	baseURL    *url.URL
	token      string
	scheme     string
	limiter    *rate.Limiter
	logger     *zap.Logger
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, opts Opts) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("missing directory url")
	}
	if token == "" {
		return nil, errors.New("missing API token")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid directory url scheme %q", u.Scheme)
	}

	apiPath := opts.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	scheme := opts.TokenScheme
	if scheme == "" {
		scheme = DefaultTokenScheme
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &Client{
		baseURL:    u.JoinPath(apiPath),
		token:      token,
		scheme:     scheme,
		logger:     opts.Logger,
		HTTPClient: &http.Client{Transport: tr, Timeout: opts.Timeout},
	}
	if c.logger == nil {
		c.logger = mlog.Nop()
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

// endpoint resolves a collection path such as "records/".
func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := c.baseURL.JoinPath(path)
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint(path, nil), payload)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	unavailable := func(err error) error {
		return &UnavailableError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return unavailable(err)
		}
	}

	c.logger.Debug("directory request", zap.String("method", req.Method), zap.Stringer("url", req.URL))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RejectedError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if result == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return unavailable(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method string, endpoint *url.URL, payload any) (*http.Request, error) {
	buf := new(bytes.Buffer)

	if payload != nil {
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to create request JSON body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.scheme+" "+c.token)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}
