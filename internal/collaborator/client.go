// Package collaborator is the shared HTTP plumbing for the services the
// engine consults: rate limiting, timing and error classification.
package collaborator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"github.com/kursadbilgin/activity-batch-engine/internal/ratelimit"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultReadAttempts = 2
	readRetryDelay      = 100 * time.Millisecond
)

// Client calls one collaborator. Every call first takes a slot from the limiter.
type Client struct {
	name         string
	http         *resty.Client
	limiter      ratelimit.RateLimiter
	metrics      *observability.Metrics
	readAttempts int
	sleep        func(ctx context.Context, d time.Duration) error
}

func New(
	name string,
	baseURL string,
	timeout time.Duration,
	limiter ratelimit.RateLimiter,
	metrics *observability.Metrics,
) (*Client, error) {
	client := resty.New()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetTimeout(timeout)
	return NewWithClient(name, baseURL, client, limiter, metrics)
}

func NewWithClient(
	name string,
	baseURL string,
	client *resty.Client,
	limiter ratelimit.RateLimiter,
	metrics *observability.Metrics,
) (*Client, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("collaborator name is required")
	}
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid %s base url: %w", name, err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	client.SetBaseURL(trimmedURL)
	client.SetRetryCount(0)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	return &Client{
		name:         name,
		http:         client,
		limiter:      limiter,
		metrics:      metrics,
		readAttempts: defaultReadAttempts,
		sleep:        sleepContext,
	}, nil
}

func (c *Client) Name() string { return c.name }

// R starts a request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// Execute sends req. Non-2xx answers come back as *CallError.
func (c *Client) Execute(ctx context.Context, req *resty.Request, method string, path string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx, c.name); err != nil {
		c.metrics.ObserveCollaboratorCall(c.name, "rate_limited", 0)
		return nil, &CallError{Collaborator: c.name, Message: "rate limit wait failed", Transient: true, Cause: err}
	}

	start := time.Now()
	response, err := req.Execute(method, path)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveCollaboratorCall(c.name, "error", elapsed)
		return nil, &CallError{
			Collaborator: c.name,
			Message:      "request failed",
			Transient:    !errors.Is(err, context.Canceled),
			Cause:        err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		c.metrics.ObserveCollaboratorCall(c.name, "success", elapsed)
		return response, nil
	}

	c.metrics.ObserveCollaboratorCall(c.name, fmt.Sprintf("http_%d", statusCode), elapsed)
	return response, &CallError{
		Collaborator: c.name,
		StatusCode:   statusCode,
		Message:      errorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:    isTransientHTTPStatus(statusCode),
	}
}

// Read sends a side-effect-free call built by newRequest and retries it
// while the failure is transient. Writes go through Execute only.
func (c *Client) Read(
	ctx context.Context,
	newRequest func() *resty.Request,
	method string,
	path string,
) (*resty.Response, error) {
	var (
		response *resty.Response
		err      error
	)
	for attempt := 1; attempt <= c.readAttempts; attempt++ {
		response, err = c.Execute(ctx, newRequest(), method, path)
		if err == nil || !IsTransient(err) || attempt == c.readAttempts {
			break
		}
		if sleepErr := c.sleep(ctx, readRetryDelay*time.Duration(attempt)); sleepErr != nil {
			break
		}
	}
	return response, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("returned status %d", statusCode)
	if body == "" {
		return base
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s: %s", base, body)
}
