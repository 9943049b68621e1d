package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmon-labs/netmon/internal/netutil"
)

const userAgent = "netmon/" + PayloadVersion

// Sender posts payloads with bounded retries. A failure is any transport
// error or a status outside 2xx/3xx.
type Sender struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewSender creates a sender with the default retry policy: three attempts,
// one second apart.
func NewSender(log zerolog.Logger) *Sender {
	return &Sender{
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
		log:        log,
	}
}

// Send posts the payload to url. Returns the last HTTP status code seen
// (0 when every attempt failed at the transport level) and the final error
// after retries are exhausted.
func (s *Sender) Send(ctx context.Context, url string, payload Payload) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	var (
		lastErr  error
		lastCode int
	)
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		code, err := s.post(ctx, url, body)
		if err == nil {
			s.log.Info().Str("url", url).Int("status", code).Msg("webhook sent")
			return code, nil
		}
		lastErr, lastCode = err, code

		s.log.Warn().Err(err).Int("attempt", attempt).Int("max", s.maxRetries).
			Msg("webhook send failed")

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
				return lastCode, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return lastCode, fmt.Errorf("failed after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *Sender) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Netmon-Hostname", netutil.Hostname())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.StatusCode, nil
}

// TestConnection probes the endpoint with a minimal payload. Server errors
// (5xx) count as failures; anything the endpoint answers below that is
// considered reachable.
func (s *Sender) TestConnection(ctx context.Context, url string) (bool, string) {
	body, _ := json.Marshal(map[string]bool{"test": true})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("invalid endpoint: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("connection failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Sprintf("server error (HTTP %d)", resp.StatusCode)
	}
	return true, fmt.Sprintf("connection ok (HTTP %d)", resp.StatusCode)
}
