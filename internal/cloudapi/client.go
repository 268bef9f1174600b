// Package cloudapi is a minimal client for the Tencent Cloud JSON API used by
// CloudBase. Every request is signed with TC3-HMAC-SHA256.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultRegion is used when neither the request nor the client names one.
const DefaultRegion = "ap-shanghai"

const defaultHTTPTimeout = 60 * time.Second

// DefaultVersions maps services to the API version used when a Request
// leaves Version empty.
var DefaultVersions = map[string]string{
	"tcb":     "2018-06-08",
	"scf":     "2018-04-16",
	"tcbr":    "2022-02-17",
	"flexdb":  "2018-11-27",
	"lowcode": "2021-01-08",
	"sts":     "2018-08-13",
	"cam":     "2019-01-16",
}

// Config is the fully composed input for one client.
type Config struct {
	SecretID     string
	SecretKey    string
	SessionToken string
	EnvID        string
	Region       string
	Proxy        string
	Extra        map[string]any
}

// LogValue redacts secret material.
func (c Config) LogValue() slog.Value {
	id := "****"
	if len(c.SecretID) > 4 {
		id = c.SecretID[:4] + "****"
	}
	return slog.GroupValue(
		slog.String("secret_id", id),
		slog.Bool("session_token", c.SessionToken != ""),
		slog.String("env_id", c.EnvID),
		slog.String("region", c.Region),
		slog.Bool("proxy", c.Proxy != ""),
	)
}

// Request is one API action.
type Request struct {
	Service string
	Action  string
	Version string // Defaults from DefaultVersions.
	Region  string // Defaults to the client region.
	Params  any    // Marshalled as the JSON body; nil sends {}.
}

// APIError is an error returned inside the API response envelope.
type APIError struct {
	Action    string
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloud api %s: %s: %s (request id %s)", e.Action, e.Code, e.Message, e.RequestID)
}

// Client issues signed requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	endpoint   func(service string) string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The proxy setting is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint sends every request to baseURL regardless of service.
func WithEndpoint(baseURL string) Option {
	return func(c *Client) { c.endpoint = func(string) string { return baseURL } }
}

// WithClock overrides the signing timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, errors.New("cloudapi: secret id and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	c := &Client{
		cfg:      cfg,
		endpoint: func(service string) string { return "https://" + service + ".tencentcloudapi.com" },
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Proxy != "" {
			proxyURL, err := url.Parse(cfg.Proxy)
			if err != nil {
				return nil, fmt.Errorf("cloudapi: invalid proxy %q: %w", cfg.Proxy, err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		c.httpClient = &http.Client{Transport: transport, Timeout: defaultHTTPTimeout}
	}
	return c, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() Config { return c.cfg }

// EnvID returns the environment the client targets, possibly empty.
func (c *Client) EnvID() string { return c.cfg.EnvID }

// Region returns the default request region.
func (c *Client) Region() string { return c.cfg.Region }

// Call performs req and returns the decoded "Response" object, RequestId
// included.
func (c *Client) Call(ctx context.Context, req Request) (map[string]any, error) {
	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cloudapi: decode %s response: %w", req.Action, err)
	}
	return out, nil
}

// CallInto performs req and decodes the "Response" object into out.
func (c *Client) CallInto(ctx context.Context, req Request, out any) error {
	raw, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cloudapi: decode %s response: %w", req.Action, err)
	}
	return nil
}

type envelope struct {
	Response json.RawMessage `json:"Response"`
}

type responseMeta struct {
	RequestID string `json:"RequestId"`
	Error     *struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error"`
}

func (c *Client) do(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Service == "" || req.Action == "" {
		return nil, errors.New("cloudapi: service and action are required")
	}
	version := req.Version
	if version == "" {
		version = DefaultVersions[req.Service]
	}
	if version == "" {
		return nil, fmt.Errorf("cloudapi: no version known for service %q", req.Service)
	}
	region := req.Region
	if region == "" {
		region = c.cfg.Region
	}

	params := req.Params
	if params == nil {
		params = struct{}{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("cloudapi: encode %s params: %w", req.Action, err)
	}

	endpoint := c.endpoint(req.Service)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("cloudapi: invalid endpoint %q: %w", endpoint, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cloudapi: build request: %w", err)
	}
	ts := c.now()
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Host", u.Host)
	httpReq.Header.Set("X-TC-Action", req.Action)
	httpReq.Header.Set("X-TC-Version", version)
	httpReq.Header.Set("X-TC-Timestamp", strconv.FormatInt(ts.Unix(), 10))
	httpReq.Header.Set("X-TC-Region", region)
	if c.cfg.SessionToken != "" {
		httpReq.Header.Set("X-TC-Token", c.cfg.SessionToken)
	}
	httpReq.Header.Set("Authorization",
		authorization(c.cfg.SecretID, c.cfg.SecretKey, req.Service, u.Host, payload, ts))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cloudapi: %s: %w", req.Action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("cloudapi: read %s response: %w", req.Action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cloudapi: %s: unexpected status %d", req.Action, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Response) == 0 {
		return nil, fmt.Errorf("cloudapi: %s: malformed response envelope", req.Action)
	}
	var meta responseMeta
	if err := json.Unmarshal(env.Response, &meta); err != nil {
		return nil, fmt.Errorf("cloudapi: %s: malformed response: %w", req.Action, err)
	}

	c.logger.Debug("cloud api call",
		slog.String("service", req.Service),
		slog.String("action", req.Action),
		slog.String("region", region),
		slog.String("request_id", meta.RequestID),
		slog.Duration("duration", time.Since(start)),
	)

	if meta.Error != nil {
		return nil, &APIError{
			Action:    req.Action,
			Code:      meta.Error.Code,
			Message:   meta.Error.Message,
			RequestID: meta.RequestID,
		}
	}
	return env.Response, nil
}
