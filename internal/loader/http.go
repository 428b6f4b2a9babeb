package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"residencyd/internal/catalog"
)

const (
	DefaultRequestTimeout = 5 * time.Minute
	DefaultConnectTimeout = 5 * time.Second
	maxErrorBody          = 512
)

// HTTPLoader drives an out-of-process backend worker over HTTP JSON.
type HTTPLoader struct {
	name       string
	family     catalog.Family
	baseURL    string
	reqTimeout time.Duration
	httpClient *http.Client
}

// HTTPOptions configures an HTTPLoader. Zero timeouts select the defaults.
type HTTPOptions struct {
	Name           string
	Family         catalog.Family
	BaseURL        string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// Client overrides the transport; used by tests.
	Client *http.Client
}

// NewHTTP constructs a loader for a backend at opts.BaseURL.
func NewHTTP(opts HTTPOptions) *HTTPLoader {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	cli := opts.Client
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		// Deadlines come from per-call contexts.
		cli = &http.Client{Transport: tr}
	}
	name := opts.Name
	if name == "" {
		name = opts.Family.String()
	}
	return &HTTPLoader{
		name:       name,
		family:     opts.Family,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		reqTimeout: opts.RequestTimeout,
		httpClient: cli,
	}
}

func (l *HTTPLoader) Name() string           { return l.name }
func (l *HTTPLoader) Family() catalog.Family { return l.family }
func (l *HTTPLoader) BaseURL() string        { return l.baseURL }

type modelRequest struct {
	Model string `json:"model"`
}

func (l *HTTPLoader) Load(ctx context.Context, id string) error {
	return l.post(ctx, "/v1/load", modelRequest{Model: id})
}

func (l *HTTPLoader) Unload(ctx context.Context, id string) error {
	return l.post(ctx, "/v1/unload", modelRequest{Model: id})
}

func (l *HTTPLoader) Release(ctx context.Context) error {
	return l.post(ctx, "/v1/release", struct{}{})
}

// Health checks GET /health once.
func (l *HTTPLoader) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.reqTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return l.do(req)
}

// WaitReady polls Health with exponential backoff until it succeeds, ctx is
// done or maxWait elapses.
func (l *HTTPLoader) WaitReady(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait
	return backoff.Retry(func() error { return l.Health(ctx) }, backoff.WithContext(b, ctx))
}

func (l *HTTPLoader) post(ctx context.Context, path string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, l.reqTimeout)
	defer cancel()
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return l.do(req)
}

func (l *HTTPLoader) do(req *http.Request) error {
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", l.name, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Loader: l.name, Path: req.URL.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// StatusError is a non-2xx reply from a backend.
type StatusError struct {
	Loader string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Loader, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Loader, e.Path, e.Code, e.Body)
}

var _ Loader = (*HTTPLoader)(nil)
