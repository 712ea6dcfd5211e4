package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/gatebot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultDialRetries       = 2
	defaultDialBackoff       = 500 * time.Millisecond
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls. The
// client timeout must exceed the long poll timeout.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: time.Second,
	}
	timeout := defaultClientTimeout
	if floor := longPoll + 10*time.Second; timeout < floor {
		timeout = floor
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &dialRetryTransport{base: transport, retries: defaultDialRetries, backoff: defaultDialBackoff},
	}
}

// dialRetryTransport repeats requests that failed before a connection was
// made. Anything later is left to the caller: a send that timed out may
// already have been delivered.
type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		curr := req
		if attempt > 0 {
			curr = req.Clone(req.Context())
			if req.Body != nil {
				if req.GetBody == nil {
					return nil, errNoRewind
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := t.base.RoundTrip(curr)
		if err == nil || attempt >= t.retries || !netutil.IsDialError(err) {
			return resp, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

var errNoRewind = errors.New("telegram: request body cannot be replayed")
