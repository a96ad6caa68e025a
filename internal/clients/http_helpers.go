package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RetryPolicy controls DoWithRetry. Zero values fall back to the package
// defaults.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = MAX_RETRIES
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = INITIAL_BACKOFF
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = MAX_BACKOFF
	}
	return p
}

// DoWithRetry retries transport errors and 5xx responses with exponential
// backoff. The request body is rewound through GetBody between attempts.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	policy = policy.withDefaults()

	var resp *http.Response
	var err error
	backoff := policy.InitialBackoff

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("rewind request body: %w", bodyErr)
			}
			req.Body = body
		}

		resp, err = client.Do(req.WithContext(ctx))
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		slog.Warn("[HTTPClient] Request failed, will retry",
			slog.String("url", req.URL.String()),
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if attempt == policy.MaxRetries-1 {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, policy.MaxBackoff)
	}

	return resp, err
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
