package adapter

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// URLChecker tells whether a source url answers
type URLChecker interface {
	// Check returns nil when the url responds with a 2xx or 3xx status
	Check(ctx context.Context, rawURL string) error
}

type httpURLChecker struct {
	httpClient *http.Client
	userAgent  string
}

type URLCheckerOption func(*httpURLChecker)

func WithCheckTimeout(d time.Duration) URLCheckerOption {
	return func(c *httpURLChecker) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithUserAgent(ua string) URLCheckerOption {
	return func(c *httpURLChecker) {
		c.userAgent = ua
	}
}

const DefaultCheckTimeout = 5 * time.Second

// NewURLChecker creates a URLChecker that issues HEAD requests. Redirects are
// not followed so that a 3xx answer counts as reachable on its own.
func NewURLChecker(opts ...URLCheckerOption) URLChecker {
	c := &httpURLChecker{
		httpClient: &http.Client{
			Timeout: DefaultCheckTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: "efemerides-url-checker/1.0",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *httpURLChecker) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return goerr.New("invalid source url", goerr.V("url", rawURL))
	}

	status, err := c.do(ctx, http.MethodHead, u.String())
	if err != nil {
		return err
	}

	// Some servers refuse HEAD outright
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = c.do(ctx, http.MethodGet, u.String())
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 400 {
		return goerr.New("source url returned error status", goerr.V("url", rawURL), goerr.V("status", status))
	}

	return nil
}

func (c *httpURLChecker) do(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create request", goerr.V("url", target))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, goerr.Wrap(err, "source url is unreachable", goerr.V("url", target), goerr.V("method", method))
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
