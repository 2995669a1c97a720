package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxResponseBodyBytes = 8 * 1024 * 1024

// RetryPolicy bounds the exponential backoff applied to retryable failures.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the client defaults: three attempts total,
// 250ms initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// HTTPClient posts JSON bodies with retry on transport errors and 5xx
// responses. Retries happen before any response body is consumed, so a
// streaming response is never re-requested mid-stream.
type HTTPClient struct {
	base   *http.Client
	policy RetryPolicy
}

func NewHTTPClient(base *http.Client, policy RetryPolicy) *HTTPClient {
	if base == nil {
		base = &http.Client{}
	}
	return &HTTPClient{base: base, policy: policy}
}

// PostJSON marshals body and posts it to url. A 4xx response is returned to
// the caller as-is; transport errors and 5xx responses are retried per the
// policy and surfaced as CoachErrors once exhausted.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewProtocolError(fmt.Sprintf("marshal request: %v", err))
	}

	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := c.base.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, ClassifyHTTPStatus(resp.StatusCode)
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.policy.InitialInterval
	bo.MaxInterval = c.policy.MaxInterval

	resp, err := backoff.RetryWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, c.policy.MaxRetries), ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return resp, nil
}
