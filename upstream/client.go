// Package upstream is the rate-limited client for the paginated open data API.
//
// Every request made through one Client shares a single limiter that enforces
// a minimum spacing between requests; callers block until their slot arrives.
// Failures are classified (see Classify) and transient ones are retried with a
// fixed delay through the retry package.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/internal/httpclient"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/retry"
)

const (
	maxBodyBytes    = 32 << 20
	maxErrorSnippet = 256
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Config configures a Client
type Config struct {
	BaseURL             string
	RequestsPerSecond   float64
	Timeout             time.Duration
	ConnectivityTimeout time.Duration
	ConnectivityPath    string
	RetryAttempts       int
	RetryDelay          time.Duration
	PageSize            int
	MaxPages            int // 0 = unbounded
	PageDelay           time.Duration
	PageParam           string
	SizeParam           string
	UserAgent           string
}

// ConfigFrom builds a client Config from the application configuration
func ConfigFrom(cfg *am.Config) Config {
	return Config{
		BaseURL:             cfg.Upstream.BaseURL,
		RequestsPerSecond:   cfg.Upstream.RequestsPerSecond,
		Timeout:             cfg.Upstream.Timeout(),
		ConnectivityTimeout: cfg.Upstream.ConnectivityTimeout(),
		ConnectivityPath:    "/legislaturas",
		RetryAttempts:       cfg.ETL.RetryAttempts,
		RetryDelay:          cfg.ETL.RetryDelay(),
		PageSize:            cfg.Upstream.PageSize,
		MaxPages:            cfg.Upstream.MaxPages,
		PageDelay:           cfg.Upstream.PageDelay(),
		PageParam:           cfg.Upstream.PageParam,
		SizeParam:           cfg.Upstream.SizeParam,
		UserAgent:           cfg.Upstream.UserAgent,
	}
}

// Client issues throttled requests against the upstream API
type Client struct {
	cfg     Config
	base    string
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// ClientOption customizes a Client at construction
type ClientOption func(*Client)

// WithHTTPClient replaces the pooled HTTP client (tests use httptest clients)
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = httpclient.WrapClient(c)
	}
}

// New creates a Client. The limiter allows one request every 1/RequestsPerSecond.
func New(cfg Config, log *zap.SugaredLogger, opts ...ClientOption) (*Client, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, errors.NewValidationError("requests per second must be > 0, got %f", cfg.RequestsPerSecond)
	}
	if cfg.PageSize <= 0 {
		return nil, errors.NewValidationError("page size must be > 0, got %d", cfg.PageSize)
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "pagina"
	}
	if cfg.SizeParam == "" {
		cfg.SizeParam = "itens"
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if log == nil {
		log = logger.ComponentLogger("upstream")
	}

	client := &Client{
		cfg:     cfg,
		http:    httpclient.New(cfg.Timeout),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  log,
	}
	for _, opt := range opts {
		opt(client)
	}

	base, err := client.http.ValidateURL(cfg.BaseURL)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "upstream base URL"), errors.ErrValidation)
	}
	client.base = strings.TrimRight(base.String(), "/")

	return client, nil
}

// Config returns the client's configuration
func (c *Client) Config() Config {
	return c.cfg
}

type requestConfig struct {
	pathParams map[string]string
	attempts   int
	timeout    time.Duration
	pageSize   int
	maxPages   int
	pageParam  string
	sizeParam  string
}

// RequestOption customizes a single call
type RequestOption func(*requestConfig)

// WithPathParams substitutes {name} placeholders in the request path
func WithPathParams(params map[string]string) RequestOption {
	return func(rc *requestConfig) {
		rc.pathParams = params
	}
}

// WithAttempts overrides the retry attempt ceiling
func WithAttempts(n int) RequestOption {
	return func(rc *requestConfig) {
		rc.attempts = n
	}
}

// WithTimeout bounds each attempt
func WithTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) {
		rc.timeout = d
	}
}

// WithPageSize overrides the page size requested by GetAllPages
func WithPageSize(n int) RequestOption {
	return func(rc *requestConfig) {
		rc.pageSize = n
	}
}

// WithMaxPages overrides the page ceiling of GetAllPages (0 = unbounded)
func WithMaxPages(n int) RequestOption {
	return func(rc *requestConfig) {
		rc.maxPages = n
	}
}

// WithPageParams renames the pagination query parameters for an endpoint family
func WithPageParams(pageName, sizeName string) RequestOption {
	return func(rc *requestConfig) {
		rc.pageParam = pageName
		rc.sizeParam = sizeName
	}
}

func (c *Client) requestConfig(opts []RequestOption) requestConfig {
	rc := requestConfig{
		attempts:  c.cfg.RetryAttempts,
		pageSize:  c.cfg.PageSize,
		maxPages:  c.cfg.MaxPages,
		pageParam: c.cfg.PageParam,
		sizeParam: c.cfg.SizeParam,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}

// Get fetches path and decodes the response envelope
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...RequestOption) (Payload, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, c.requestConfig(opts))
}

// Post sends body as JSON to path and decodes the response envelope
func (c *Client) Post(ctx context.Context, path string, query url.Values, body any, opts ...RequestOption) (Payload, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Payload{}, errors.Mark(errors.Wrap(err, "encode request body"), errors.ErrValidation)
	}
	return c.do(ctx, http.MethodPost, path, query, data, c.requestConfig(opts))
}

// CheckConnectivity issues one lightweight request with a short timeout and a
// single attempt. It never returns an error.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	query := url.Values{}
	query.Set(c.cfg.SizeParam, "1")

	path := c.cfg.ConnectivityPath
	if path == "" {
		path = "/"
	}

	_, err := c.Get(ctx, path, query, WithAttempts(1), WithTimeout(c.cfg.ConnectivityTimeout))
	if err != nil {
		c.logger.Warnw("Upstream unreachable", logger.FieldURL, c.base, logger.FieldError, err.Error())
		return false
	}
	return true
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, rc requestConfig) (Payload, error) {
	target, err := c.buildURL(path, rc.pathParams, query)
	if err != nil {
		return Payload{}, err
	}

	label := method + " " + target
	policy := retry.Policy{
		MaxAttempts: rc.attempts,
		Delay:       c.cfg.RetryDelay,
		Logger:      c.logger,
	}

	return retry.Do(ctx, label, policy, func(ctx context.Context) (Payload, error) {
		return c.once(ctx, method, target, body, rc.timeout)
	})
}

// once performs a single throttled attempt
func (c *Client) once(ctx context.Context, method, target string, body []byte, timeout time.Duration) (Payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Payload{}, mark(errors.Wrap(err, "waiting for rate limiter"), ClassClient)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Payload{}, mark(errors.Wrap(err, "build request"), ClassClient)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, mark(errors.Wrapf(err, "%s %s", method, target), Classify(0, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Payload{}, mark(errors.Wrapf(err, "read body of %s %s", method, target), ClassTransient)
	}

	c.logger.Debugw("Upstream response",
		logger.FieldMethod, method,
		logger.FieldURL, target,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	if class := Classify(resp.StatusCode, nil); class != ClassOK {
		snippet := string(data)
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return Payload{}, mark(&StatusError{
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(snippet),
		}, class)
	}

	payload, err := DecodePayload(data)
	if err != nil {
		return Payload{}, errors.Wrapf(err, "%s %s", method, target)
	}
	return payload, nil
}

// buildURL expands {param} placeholders and appends query to the base URL
func (c *Client) buildURL(path string, params map[string]string, query url.Values) (string, error) {
	var missing []string
	expanded := placeholder.ReplaceAllStringFunc(path, func(m string) string {
		name := m[1 : len(m)-1]
		value, ok := params[name]
		if !ok || value == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(value)
	})
	if len(missing) > 0 {
		return "", errors.NewValidationError("path %q: no value for placeholder(s) %v", path, missing)
	}

	u, err := url.Parse(c.base + "/" + strings.TrimLeft(expanded, "/"))
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "path %q", path), errors.ErrValidation)
	}

	if len(query) > 0 {
		merged := u.Query()
		for key, values := range query {
			merged[key] = append([]string(nil), values...)
		}
		u.RawQuery = merged.Encode()
	}

	return u.String(), nil
}

// sleep waits d on a timer, returning early if ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
