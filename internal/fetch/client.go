// Package fetch downloads remote files for import.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"syscall"
	"time"
)

var (
	ErrInvalidURL = errors.New("invalid remote url")
	ErrStatus     = errors.New("unexpected response status")
	ErrTooLarge   = errors.New("remote file exceeds size limit")
	ErrEmpty      = errors.New("remote file is empty")

	ErrForbiddenAddress = errors.New("remote address is not public")
)

// sharedAddressSpace is the carrier-grade NAT range, RFC 6598
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Response is a downloaded body
type Response struct {
	Data []byte
}

// Client downloads remote files over http(s)
type Client struct {
	http         *http.Client
	userAgent    string
	maxBytes     int64
	allowPrivate bool
}

// Option configures a Client
type Option func(*Client)

// AllowPrivateNetworks lets the client connect to loopback, private and
// link-local addresses, which are refused by default
func AllowPrivateNetworks() Option {
	return func(c *Client) { c.allowPrivate = true }
}

func NewClient(timeout time.Duration, userAgent string, maxBytes int64, opts ...Option) *Client {
	c := &Client{userAgent: userAgent, maxBytes: maxBytes}
	for _, opt := range opts {
		opt(c)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !c.allowPrivate {
		// the check runs on the resolved address of every connection,
		// redirects included; a proxy would hide the real target
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   checkDialAddress,
		}
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
	}
	c.http = &http.Client{Timeout: timeout, Transport: transport}
	return c
}

func checkDialAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!sharedAddressSpace.Contains(ip)
}

// Get downloads rawURL into memory
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d from %s", ErrStatus, resp.StatusCode, rawURL)
	}

	if c.maxBytes > 0 {
		if size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && size > c.maxBytes {
			return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, size, c.maxBytes)
		}
	}

	var reader io.Reader = resp.Body
	if c.maxBytes > 0 {
		// one extra byte tells a body of exactly maxBytes from a larger one
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	return &Response{Data: data}, nil
}
