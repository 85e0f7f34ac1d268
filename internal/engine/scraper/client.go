// Package scraper talks to the Google Maps tbm=map search endpoint.
package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rendis/gridrank/internal/model"
)

const (
	defaultBaseURL = "https://www.google.com/search"

	maxRetries   = 3
	baseBackoff  = 2 * time.Second
	maxBackoff   = 30 * time.Second
	jitterFactor = 0.5
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// RateLimitError means Google throttled or redirected the request.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("scraper: rate limited (status %d)", e.StatusCode)
}

// Options configures a Client.
type Options struct {
	Lang     string
	ProxyURL string
	// RequestsPerSecond caps outgoing requests across all callers. 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// BaseURL overrides the search endpoint.
	BaseURL string
	// Backoff overrides the base retry backoff.
	Backoff time.Duration
}

// Client performs Maps searches. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	baseURL    string
	lang       string
	backoff    time.Duration
	limiter    *rate.Limiter
	rateLimits atomic.Int64
	log        *zap.Logger
}

// NewClient builds a client that presents a Chrome TLS fingerprint unless a
// proxy is configured.
func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	googleURL, _ := url.Parse("https://www.google.com")
	jar.SetCookies(googleURL, []*http.Cookie{
		{Name: "CONSENT", Value: "YES+ES.es+V14+BX", Path: "/", Domain: ".google.com"},
	})

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialTLSContext:      chromeDialer(dialer),
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
	}

	log := zap.L().With(zap.String("component", "maps_client"))

	if opts.ProxyURL != "" {
		if proxyURL, err := url.Parse(opts.ProxyURL); err == nil {
			// the proxy terminates the tunnel, so fall back to standard TLS
			transport.Proxy = http.ProxyURL(proxyURL)
			transport.DialTLSContext = nil
			transport.TLSClientConfig = &tls.Config{}
		} else {
			log.Warn("ignoring invalid proxy url", zap.Error(err))
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = baseBackoff
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		lang:    lang,
		backoff: backoff,
		limiter: limiter,
		log:     log,
	}
}

func chromeDialer(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		// Chrome hello, forced to HTTP/1.1 ALPN
		spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
		if err != nil {
			conn.Close()
			return nil, err
		}
		for i, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
				spec.Extensions[i] = alpn
				break
			}
		}

		tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloCustom)
		if err := tlsConn.ApplyPreset(&spec); err != nil {
			conn.Close()
			return nil, err
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

// SearchURL is the public Maps URL for query near c, used for attribution.
func SearchURL(query string, c model.Coordinate, zoom int) string {
	return fmt.Sprintf("https://www.google.com/maps/search/%s/@%.7f,%.7f,%dz",
		url.PathEscape(query), c.Lat, c.Lng, zoom)
}

// SearchMap runs one tbm=map search page around c. Rate-limited responses
// are retried with exponential backoff.
func (c *Client) SearchMap(ctx context.Context, coord model.Coordinate, query string, zoom, offset int) ([]byte, error) {
	params := url.Values{}
	params.Set("tbm", "map")
	params.Set("authuser", "0")
	params.Set("hl", c.lang)
	params.Set("q", query)
	params.Set("pb", BuildPB(coord, zoom, offset))
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := range maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "scraper: wait for rate limiter")
		}

		body, err := c.doRequest(ctx, reqURL)
		if err == nil {
			c.rateLimits.Store(0)
			return body, nil
		}
		lastErr = err

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}
		c.rateLimits.Add(1)
		c.log.Warn("rate limited",
			zap.Int("status", rl.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.String("query", query),
		)

		wait := min(c.backoff*time.Duration(1<<uint(attempt)), maxBackoff)
		wait += time.Duration(float64(wait) * jitterFactor * rand.Float64())
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "scraper: backoff")
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// ConsecutiveRateLimits is the number of rate limits since the last success.
func (c *Client) ConsecutiveRateLimits() int64 {
	return c.rateLimits.Load()
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: build request")
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.lang+";q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusFound,
		resp.StatusCode == http.StatusMovedPermanently,
		resp.StatusCode == http.StatusTemporaryRedirect:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &RateLimitError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, eris.Errorf("scraper: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: read body")
	}
	return body, nil
}
