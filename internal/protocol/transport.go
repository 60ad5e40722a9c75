package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/information-sharing-networks/authcore/internal/logger"
	"github.com/information-sharing-networks/authcore/internal/version"
)

// Transport sends a JSON request body and returns the raw response body and HTTP status.
// An error means no response was received (connection failure, timeout, cancellation).
type Transport interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, int, error)
}

// responses larger than this are truncated and fail validation
const maxResponseBytes = 4 << 20

type HTTPTransportOptions struct {
	// Timeout bounds a whole request including reading the body. Zero means no timeout.
	Timeout time.Duration
	// RateLimit is the sustained number of requests per second. Zero disables client side limiting.
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
	// Base is the underlying round tripper, http.DefaultTransport when nil.
	Base http.RoundTripper
}

// HTTPTransport is the default Transport.
// Each request carries a fresh X-Request-ID and the client user agent, and is logged on completion.
type HTTPTransport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPTransport(opts HTTPTransportOptions) *HTTPTransport {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	t := &HTTPTransport{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: logger.RoundTripper(opts.Base, log),
		},
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return t
}

func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(logger.RequestIDHeader, uuid.NewString())

	res, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return resBody, res.StatusCode, nil
}
