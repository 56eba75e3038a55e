package llm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

// RetryPolicy controls how a chat request is repeated after a 429 or 5xx
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy allows three retries, waiting 1s, 2s and 4s
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the wait after failed attempt n (0-based): InitialBackoff
// doubled n times, capped at MaxBackoff.
func (p *RetryPolicy) Backoff(n int) time.Duration {
	d := p.InitialBackoff
	for i := 0; i < n && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

// wait is Backoff unless a rate-limited response names its own delay in
// seconds. Either way the result stays under MaxBackoff.
func (p *RetryPolicy) wait(n int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return min(time.Duration(secs)*time.Second, p.MaxBackoff)
		}
	}
	return p.Backoff(n)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// send issues the request built by newReq until it gets a 200, a status that
// is not worth repeating, or runs out of retries. Non-200 responses that are
// not retried are returned unread.
func (c *ChatClient) send(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	policy := c.retry
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == http.StatusOK || !retryable(resp.StatusCode):
			return resp, nil
		default:
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt >= policy.MaxRetries {
			break
		}

		delay := policy.wait(attempt, resp)
		c.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", policy.MaxRetries).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Request failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, domain.UpstreamError(fmt.Sprintf("request failed after %d retries", policy.MaxRetries), lastErr)
}
