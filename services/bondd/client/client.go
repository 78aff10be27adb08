package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/elysia-dev/elysia-korea-pf/services/bondd/api"
)

// APIError is a non-2xx response from bondd.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bondd: %d %s", e.Status, e.Message)
}

// Client calls the bondd HTTP API. Mutating calls carry a fresh
// Idempotency-Key which is reused across retries of the same call.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	retries int
	backoff time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRetries sets how often transport failures and 5xx responses are retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(cl *Client) {
		cl.retries = n
		cl.backoff = backoff
	}
}

// New builds a client for baseURL authenticating with the bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	c := &Client{
		base:    parsed,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retries: 2,
		backoff: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and returns a 2xx response. The caller closes
// the body.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode: %w", err)
		}
		payload = encoded
	}
	key := ""
	if method != http.MethodGet {
		key = uuid.NewString()
	}
	target := c.base.String() + path

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 300 {
			return resp, nil
		}
		apiErr := readError(resp)
		if resp.StatusCode < 500 {
			return nil, apiErr
		}
		lastErr = apiErr
	}
	return nil, lastErr
}

func readError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body api.Error
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func productPath(id uint64, suffix string) string {
	return fmt.Sprintf("/v1/products/%d%s", id, suffix)
}

func (c *Client) RegisterToken(ctx context.Context, req api.RegisterTokenRequest) (*api.Token, error) {
	var out api.Token
	if err := c.do(ctx, http.MethodPost, "/v1/tokens", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MintToken(ctx context.Context, token string, req api.TokenMintRequest) (*api.Balance, error) {
	var out api.Balance
	if err := c.do(ctx, http.MethodPost, "/v1/tokens/"+token+"/mint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApproveToken(ctx context.Context, token string, req api.TokenApproveRequest) (*api.Balance, error) {
	var out api.Balance
	if err := c.do(ctx, http.MethodPost, "/v1/tokens/"+token+"/approve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBullet(ctx context.Context, req api.CreateBulletRequest) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodPost, "/v1/products/bullet", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCoupon(ctx context.Context, req api.CreateCouponRequest) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodPost, "/v1/products/coupon", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MintBatch(ctx context.Context, id uint64, req api.MintBatchRequest) (*api.Holders, error) {
	var out api.Holders
	if err := c.do(ctx, http.MethodPost, productPath(id, "/mint"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transfer(ctx context.Context, id uint64, req api.TransferRequest) (*api.Balance, error) {
	var out api.Balance
	if err := c.do(ctx, http.MethodPost, productPath(id, "/transfer"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Repay(ctx context.Context, id uint64, req api.RepayRequest) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodPost, productPath(id, "/repay"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Deposit(ctx context.Context, id uint64, amount string) (*api.Paid, error) {
	var out api.Paid
	if err := c.do(ctx, http.MethodPost, productPath(id, "/deposit"), api.AmountRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WithdrawResidue(ctx context.Context, id uint64, amount string) (*api.Paid, error) {
	var out api.Paid
	if err := c.do(ctx, http.MethodPost, productPath(id, "/residue"), api.AmountRequest{Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Claim(ctx context.Context, id uint64, holder string) (*api.Claim, error) {
	var out api.Claim
	if err := c.do(ctx, http.MethodPost, productPath(id, "/claim/"+holder), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Claimable(ctx context.Context, id uint64, holder string) (*api.Claim, error) {
	var out api.Claim
	if err := c.do(ctx, http.MethodGet, productPath(id, "/claimable/"+holder), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Product(ctx context.Context, id uint64) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodGet, productPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Holders(ctx context.Context, id uint64) (*api.Holders, error) {
	var out api.Holders
	if err := c.do(ctx, http.MethodGet, productPath(id, "/holders"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report streams the holder snapshot of a product into w.
func (c *Client) Report(ctx context.Context, id uint64, format string, w io.Writer) error {
	path := productPath(id, "/report?format="+url.QueryEscape(format))
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}
