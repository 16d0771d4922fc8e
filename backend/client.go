package backend

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

	"dashboard/config"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiPrefix       = "/api/v1"
	maxResponseSize = 8 << 20
)

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrUnavailable  = errors.New("backend: temporarily unavailable")
)

// APIError is a non-2xx answer, or a 2xx answer whose envelope status says
// the request failed.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// MessageOf returns the backend's own message for err when it has one.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StatusOf returns the backend status code carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Observer records the latency and outcome of every call.
type Observer interface {
	ObserveBackend(operation string, start time.Time, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveBackend(string, time.Time, error) {}

type Options struct {
	BaseURL              string
	Timeout              time.Duration
	BreakerFailures      uint32
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenCalls uint32
	HTTPClient           *http.Client
	Observer             Observer
	Logger               *zap.Logger
}

func OptionsFrom(cfg config.BackendConfig) Options {
	return Options{
		BaseURL:              cfg.BaseURL,
		Timeout:              cfg.RequestTimeout,
		BreakerFailures:      cfg.BreakerFailures,
		BreakerOpenTimeout:   cfg.BreakerOpenTimeout,
		BreakerHalfOpenCalls: cfg.BreakerHalfOpenCalls,
	}
}

// Client is shared by every session. Per-session calls go through the API
// returned by WithToken.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	tracer   trace.Tracer
	observer Observer
	log      *zap.Logger
}

func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}

	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		tracer:   otel.Tracer("dashboard/backend"),
		observer: opts.Observer,
		log:      opts.Logger.Named("backend"),
	}

	failures := opts.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "marketplace-api",
		MaxRequests: opts.BreakerHalfOpenCalls,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return false
		},
	})

	return c
}

// API performs calls on behalf of one backend user.
type API struct {
	c     *Client
	token string
}

func (c *Client) WithToken(token string) *API {
	return &API{c: c, token: token}
}

// Public is for endpoints that need no bearer token.
func (c *Client) Public() *API {
	return &API{c: c}
}

func (a *API) Token() string { return a.token }

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	form   *formBody
}

func (a *API) call(ctx context.Context, r request, out any) (*envelope, error) {
	start := time.Now()
	ctx, span := a.c.tracer.Start(ctx, "backend."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.method),
			attribute.String("backend.path", r.path),
		),
	)
	defer span.End()

	raw, err := a.c.breaker.Execute(func() ([]byte, error) {
		return a.roundTrip(ctx, r)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", r.op, ErrUnavailable)
	}

	var env envelope
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		if jerr := json.Unmarshal(raw, &env); jerr != nil {
			err = fmt.Errorf("%s: decoding response: %w", r.op, jerr)
		}
	}
	if err == nil && (env.Status == "fail" || env.Status == "error") {
		err = &APIError{Op: r.op, StatusCode: http.StatusOK, Message: firstNonEmpty(env.Message, env.Error, "request failed")}
	}
	if err == nil && out != nil && hasData(env.Data) {
		if jerr := json.Unmarshal(env.Data, out); jerr != nil {
			err = fmt.Errorf("%s: decoding data: %w", r.op, jerr)
		}
	}

	a.c.observer.ObserveBackend(r.op, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &env, nil
}

func (a *API) roundTrip(ctx context.Context, r request) ([]byte, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		body, contentType = r.form.buf, r.form.contentType
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", r.op, err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	target := a.c.baseURL + apiPrefix + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := a.c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", r.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: r.op, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	return data, nil
}

func errorMessage(body []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if msg := firstNonEmpty(env.Message, env.Error); msg != "" {
			return msg
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 && !strings.HasPrefix(s, "<") {
		return s
	}
	return fallback
}

func hasData(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
