// Package httpclient implements C1: execute one outbound request with
// configurable timeouts, redirect limits and cookie injection,
// grounded on the teacher's internal/httpclient package (same
// *http.Client construction style) but generalized from a
// session-auth helper into the watcher/workflow request executor.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/GabriWar/vigilant/internal/common"
	"github.com/GabriWar/vigilant/internal/errs"
)

// Request is one outbound HTTP call (a watcher's or workflow step's
// assembled request template, spec §4.1).
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Cookies []Cookie
}

// Cookie is a structured cookie parsed from (or to be sent with) a
// request (spec §4.1/§3).
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  *time.Time
	HTTPOnly bool
	Secure   bool
}

// Response is C1's output: status, headers, body and any cookies the
// server set.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
	Cookies []Cookie
}

// Client executes HTTP requests with the timeout/redirect policy of
// spec §4.1. It holds no mutable state across calls beyond pooled
// connections.
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client from the process-wide HTTP configuration.
func New(cfg *common.HTTPConfig) *Client {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	dialer := &net.Dialer{Timeout: time.Duration(cfg.TimeoutConnectSeconds) * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: time.Duration(cfg.TimeoutReadSeconds) * time.Second,
	}

	c := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutTotalSeconds) * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "webwatch/1.0"
	}

	return &Client{http: c, userAgent: userAgent}
}

// Execute performs one HTTP request (spec §4.1). Any DNS/connect/TLS/
// timeout failure is returned as an *errs.Error with Kind=Network,
// except a failure caused by ctx itself: Kind=Timeout when its
// deadline passed, Kind=Cancelled when it was cancelled. Any HTTP
// status code, including 4xx/5xx, is a successful Execute.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, errs.New(errs.Validation, "http.execute", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if len(req.Cookies) > 0 {
		httpReq.Header.Set("Cookie", encodeCookieHeader(req.Cookies))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, errs.New(errs.Timeout, "http.execute", err)
		case context.Canceled:
			return nil, errs.New(errs.Cancelled, "http.execute", err)
		}
		return nil, errs.New(errs.Network, "http.execute", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.Network, "http.execute", fmt.Errorf("read response body: %w", err))
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
		Cookies: parseSetCookies(resp.Header.Values("Set-Cookie")),
	}, nil
}

// encodeCookieHeader renders cookies as a single Cookie header value,
// "name=value; name2=value2".
func encodeCookieHeader(cookies []Cookie) string {
	var buf bytes.Buffer
	for i, c := range cookies {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(c.Name)
		buf.WriteByte('=')
		buf.WriteString(c.Value)
	}
	return buf.String()
}
