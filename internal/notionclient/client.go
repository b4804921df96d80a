package notionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	defaultRequestsPerSecond = 3
	maxAttempts              = 3
)

type Options struct {
	Token             string
	BaseURL           string
	Version           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

type Client struct {
	http    *http.Client
	baseURL string
	version string
	token   string
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = DefaultVersion
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		version: version,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  otel.Tracer("notionclient"),
	}, nil
}

// APIError is a non-2xx Notion response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion api http %d", e.Status)
	}
	return fmt.Sprintf("notion api http %d: %s: %s", e.Status, e.Code, e.Message)
}

type apiErrorBody struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, operation, method, path string, payload any) ([]byte, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("notion client is not initialized")
	}
	ctx, span := c.tracer.Start(ctx, "notion."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("notion.path", path),
	)

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, status, headers, err := c.send(ctx, method, path, raw)
		if err != nil {
			lastErr = err
		} else if status >= 200 && status < 300 {
			c.metrics.ObserveNotion(operation, "ok", time.Since(started).Seconds())
			span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("notion.attempts", attempt))
			return body, nil
		} else {
			lastErr = parseAPIError(status, body)
		}

		if attempt >= maxAttempts {
			break
		}
		wait, retryable := retryDelay(status, headers, attempt)
		if !retryable {
			break
		}
		c.logger.Warn("notion_request_retry", "operation", operation, "status", status, "attempt", attempt, "wait", wait.String())
		if err := sleepWithContext(ctx, wait); err != nil {
			return nil, err
		}
	}
	c.metrics.ObserveNotion(operation, "error", time.Since(started).Seconds())
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	c.logger.Warn("notion_request_error", "operation", operation, "error", lastErr.Error())
	return nil, fmt.Errorf("notion %s: %w", operation, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, raw []byte) ([]byte, int, http.Header, error) {
	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	out, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, resp.Header, readErr
	}
	return out, resp.StatusCode, resp.Header, nil
}

func parseAPIError(status int, body []byte) error {
	var out apiErrorBody
	if err := json.Unmarshal(body, &out); err != nil || strings.TrimSpace(out.Code) == "" {
		return &APIError{Status: status}
	}
	return &APIError{
		Status:  status,
		Code:    strings.TrimSpace(out.Code),
		Message: strings.TrimSpace(out.Message),
	}
}

func retryDelay(status int, headers http.Header, attempt int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := strings.TrimSpace(headers.Get("Retry-After"))
		if retryAfter == "" {
			return 1 * time.Second, true
		}
		secs, err := strconv.Atoi(retryAfter)
		if err != nil || secs <= 0 {
			return 1 * time.Second, true
		}
		return time.Duration(secs) * time.Second, true
	case status == 0 || (status >= 500 && status <= 599):
		switch attempt {
		case 1:
			return 300 * time.Millisecond, true
		case 2:
			return 1 * time.Second, true
		default:
			return 2 * time.Second, true
		}
	default:
		return 0, false
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func escapeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("notion id is required")
	}
	return url.PathEscape(id), nil
}
