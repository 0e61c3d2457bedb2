package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"advocat/internal/config"
	"advocat/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// Authenticator supplies the bearer token of one visitor and is told when the
// remote API rejects it.
type Authenticator interface {
	Token() string
	Unauthorized()
}

// Client calls the remote REST API. A base client is shared by the gateway;
// WithAuth derives a per-visitor view that carries that visitor's token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration

	auth Authenticator
}

func NewClient(cfg config.RemoteConfig, logger *zerolog.Logger) *Client {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "remote").Logger()
	}
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := max(cfg.Burst, 1)
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  l,
	}
}

// UseRedisCache configures optional Redis caching for public catalog GETs.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// WithAuth returns a copy of c that authenticates as a.
func (c *Client) WithAuth(a Authenticator) *Client {
	cp := *c
	cp.auth = a
	return &cp
}

// Ping checks that the remote API answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote ping: %w", err)
	}
	resp.Body.Close()
	return nil
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.doJSON(ctx, request{op: op, method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any, out any) error {
	req := request{op: op, method: http.MethodPost, path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	_, data, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

// delete treats only 200 and 204 as success.
func (c *Client) delete(ctx context.Context, op, path string) (bool, error) {
	status, data, err := c.send(ctx, request{op: op, method: http.MethodDelete, path: path})
	if err != nil {
		return false, err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return false, &APIError{Op: op, StatusCode: status, Body: string(data)}
	}
	return true, nil
}

// send performs the call. It returns an *APIError for non-2xx answers and
// ErrUnauthorized when a request carrying a token is rejected with 401.
func (c *Client) send(ctx context.Context, r request) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%s: rate limit: %w", r.op, err)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	authenticated := c.addAuth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRemote(r.op, "error", time.Since(start))
		c.logger.Error().Err(err).Str("op", r.op).Msg("remote call failed")
		return 0, nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()
	metrics.ObserveRemote(r.op, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		c.logger.Warn().Str("op", r.op).Msg("token rejected, logging visitor out")
		c.auth.Unauthorized()
		return resp.StatusCode, nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error().Str("op", r.op).Int("status", resp.StatusCode).Msg("remote call rejected")
		return resp.StatusCode, body, &APIError{Op: r.op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read body: %w", r.op, err)
	}
	return resp.StatusCode, data, nil
}

func (c *Client) addAuth(req *http.Request) bool {
	if c.auth == nil {
		return false
	}
	token := c.auth.Token()
	if token == "" {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return true
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// getList fetches a JSON array. null, an empty body or a non-array answer
// yield an empty slice, unless wrapSingle is set, in which case a lone object
// becomes a one-element slice.
func getList[T any](ctx context.Context, c *Client, op, path string, query url.Values, wrapSingle bool) ([]T, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, op, path, query, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](op, raw, wrapSingle)
}

func decodeList[T any](op string, raw json.RawMessage, wrapSingle bool) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	out := []T{}
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return out, nil
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("%s: decode list: %w", op, err)
		}
		return out, nil
	case trimmed[0] == '{' && wrapSingle:
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%s: decode item: %w", op, err)
		}
		return append(out, one), nil
	default:
		return out, nil
	}
}

// cachedList is getList behind the redis read-through cache.
func cachedList[T any](ctx context.Context, c *Client, op, path, cacheKey string) ([]T, error) {
	var items []T
	if c.readCache(ctx, cacheKey, &items) {
		return items, nil
	}
	items, err := getList[T](ctx, c, op, path, nil, true)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, items)
	return items, nil
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
