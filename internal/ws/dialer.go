package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectFailed is the terminal connection error surfaced once the retry
// budget is spent. Callers must not keep retrying past it.
var ErrConnectFailed = errors.New("connection failed after retries")

// Backoff is a capped exponential schedule: Base, 2*Base, 4*Base, ... never
// exceeding Max, for at most Attempts tries.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second, Attempts: 6}
}

// Delay returns the wait before retry attempt n (0-based; attempt 0 waits
// nothing).
func (b Backoff) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := b.Base << (n - 1)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

type dialFunc func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)

// Dialer establishes client websocket connections with bounded retries.
type Dialer struct {
	Backoff Backoff
	dial    dialFunc
}

func NewDialer(b Backoff) *Dialer {
	return &Dialer{
		Backoff: b,
		dial: func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			return conn, err
		},
	}
}

// Dial connects with capped exponential backoff. After the attempt budget is
// exhausted it returns ErrConnectFailed wrapping the last transport error.
func (d *Dialer) Dial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	var lastErr error
	for n := 0; n < d.Backoff.Attempts; n++ {
		if delay := d.Backoff.Delay(n); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		conn, err := d.dial(ctx, url, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectFailed, lastErr)
}
