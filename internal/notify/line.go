package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultLineURL = "https://notify-api.line.me/api/notify"

// ErrRateLimited is returned when a message is dropped by the limiter.
var ErrRateLimited = errors.New("notify: rate limited")

// Line posts messages to the LINE Notify API.
type Line struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

type LineOption func(*Line)

func WithURL(u string) LineOption {
	return func(l *Line) {
		if u != "" {
			l.url = u
		}
	}
}

func WithHTTPClient(c *http.Client) LineOption {
	return func(l *Line) { l.client = c }
}

// NewLine allows perMinute messages per minute, bursting to the same amount.
// perMinute <= 0 disables limiting.
func NewLine(token string, perMinute int, opts ...LineOption) *Line {
	l := &Line{
		url:     DefaultLineURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if perMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Line) Notify(ctx context.Context, message string) error {
	if !l.limiter.Allow() {
		return ErrRateLimited
	}

	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: line: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: line: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
