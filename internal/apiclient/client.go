// Package apiclient はリモートREST APIを呼び出すHTTPクライアントを提供する。
// 失敗は全て*Errorに正規化し、401を受け取るとBroadcasterで通知する。
package apiclient

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
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseSize はレスポンスボディの最大サイズ（10MB）。
const maxResponseSize = 10 << 20

// Metrics はリクエストの結果を記録する。
type Metrics interface {
	ObserveAPIRequest(method string, status int, duration time.Duration)
	ObserveUnauthorized()
}

// Config はClientの設定。
type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Limiter     *rate.Limiter
	Broadcaster *Broadcaster
	Metrics     Metrics
	Now         func() time.Time
}

// Client はリモートAPIのクライアント。
type Client struct {
	base        *url.URL
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *rate.Limiter
	broadcaster *Broadcaster
	metrics     Metrics
	now         func() time.Time
}

// New はClientを生成する。BaseURLはhttpまたはhttpsの絶対URLでなければならない。
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API base URL: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("API base URL must be an absolute http(s) URL: %q", cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = NewBroadcaster()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		base:        base,
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger,
		limiter:     cfg.Limiter,
		broadcaster: cfg.Broadcaster,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}, nil
}

// Broadcaster は401の通知先を返す。
func (c *Client) Broadcaster() *Broadcaster {
	return c.broadcaster
}

type requestOptions struct {
	bearer string
	query  url.Values
}

// RequestOption はリクエスト単位の設定。
type RequestOption func(*requestOptions)

// WithBearer はAuthorizationヘッダーにベアラートークンを付与する。空文字列の場合は付与しない。
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
	}
}

// WithQuery はクエリパラメータを追加する。
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range q {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// Get はGETリクエストを送り、レスポンスをoutにデコードする。
// キャッシュを避けるため _t パラメータに現在時刻（ミリ秒）を付与する。
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post はbodyをJSONで送信する。
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put はbodyをJSONで送信する。
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch はbodyをJSONで送信する。
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete はDELETEリクエストを送る。
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do はリクエストを送り、2xxのレスポンスをoutにデコードする。
// outが*json.RawMessageの場合はボディをそのまま格納し、nilの場合はボディを読み捨てる。
// 返すエラーは常に*Errorになる。
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	req, err := c.newRequest(ctx, method, path, body, o)
	if err != nil {
		return &Error{Message: DefaultErrorMessage, err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return networkError(err)
		}
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		c.observe(method, 0, start)
		return networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: DefaultErrorMessage, err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := responseError(resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized {
			if c.metrics != nil {
				c.metrics.ObserveUnauthorized()
			}
			c.broadcaster.Publish(UnauthorizedEvent{Token: o.bearer, Method: method, Path: path})
		}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "リモートAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], raw...)
		return nil
	}
	if err := json.Unmarshal(Unwrap(raw), out); err != nil {
		return &Error{Status: resp.StatusCode, Message: DefaultErrorMessage, err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, o requestOptions) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, errors.New("absolute URLs are not allowed; paths are relative to the API base URL")
	}

	u := *c.base
	escaped := c.base.EscapedPath() + "/" + strings.TrimLeft(ref.EscapedPath(), "/")
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("failed to build path %q: %w", path, err)
	}
	u.Path = unescaped
	u.RawPath = escaped
	q := ref.Query()
	for k, vs := range o.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if method == http.MethodGet {
		q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+o.bearer)
	}
	return req, nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveAPIRequest(method, status, c.now().Sub(start))
	}
}
