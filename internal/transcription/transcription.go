// Package transcription obtains raw ASR job output from a URL or a local file.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/types"
)

// maxBodyBytes bounds a downloaded transcript.
const maxBodyBytes = 64 << 20

var ErrEmptyBody = errors.New("empty transcript body")

type Client struct {
	http       *http.Client
	maxRetries int
	log        *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }
func WithMaxRetries(n int) Option { return func(cl *Client) { cl.maxRetries = n } }
func WithLogger(l *logger.Logger) Option { return func(cl *Client) { cl.log = l } }

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		maxRetries: 3,
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	return c
}

// Get resolves source as an http(s) URL or a file path.
func (c *Client) Get(ctx context.Context, source string) (*types.RawResult, error) {
	if IsURL(source) {
		return c.Fetch(ctx, source)
	}
	return LoadFile(source)
}

func IsURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads and decodes a transcript. Network errors and 5xx responses
// are retried with exponential backoff; 4xx responses and undecodable bodies
// are not.
func (c *Client) Fetch(ctx context.Context, url string) (*types.RawResult, error) {
	log := c.log.WithField("module", "transcription").WithField("url", url)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(c.maxRetries, 0))), ctx)

	var (
		raw      *types.RawResult
		attempts int
	)
	op := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body))
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("download failed %d: %s", resp.StatusCode, truncate(body)))
		}
		raw, err = decodeBytes(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("transcript fetch failed, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("fetch transcript after %d attempt(s): %w", attempts, err)
	}
	log.WithField("attempts", attempts).Debug("transcript fetched")
	return raw, nil
}

func LoadFile(path string) (*types.RawResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	raw, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

func Decode(r io.Reader) (*types.RawResult, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return decodeBytes(body)
}

func decodeBytes(body []byte) (*types.RawResult, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyBody
	}
	var raw types.RawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode transcript json: %w", err)
	}
	return &raw, nil
}

func truncate(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
