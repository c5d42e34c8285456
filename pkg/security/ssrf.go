// Package security guards outbound model endpoints and inbound request rates.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrHostNotAllowed is returned when a host is absent from the allowlist.
	ErrHostNotAllowed = errors.New("host not in allowlist")

	// ErrAddressBlocked is returned when a host resolves to a blocked address.
	ErrAddressBlocked = errors.New("address blocked")
)

// DefaultModelHosts is the allowlist used for local model servers when none is configured.
var DefaultModelHosts = []string{
	"localhost",
	"127.0.0.1",
	"::1",
	"ollama",
}

// HostGuard validates model endpoint URLs and the addresses they dial.
// Loopback is always allowed; private, link-local, multicast and cloud
// metadata addresses are rejected.
type HostGuard struct {
	allowed map[string]bool
	lookup  func(host string) ([]net.IP, error)
}

// NewHostGuard creates a guard for the given hosts. An empty list allows any
// host that passes address validation.
func NewHostGuard(hosts []string) *HostGuard {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = true
		}
	}
	return &HostGuard{
		allowed: allowed,
		lookup:  net.LookupIP,
	}
}

// ValidateURL checks scheme, host allowlist and resolved addresses.
func (g *HostGuard) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}
	return g.ValidateHost(u.Hostname())
}

// ValidateHost checks a bare hostname or IP literal.
func (g *HostGuard) ValidateHost(host string) error {
	lower := strings.ToLower(host)
	if len(g.allowed) > 0 && !g.allowed[lower] {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	if lower == "localhost" {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		return ValidateIP(ip)
	}

	ips, err := g.lookup(host)
	if err != nil {
		// Compose service names only resolve inside the container network.
		if g.allowed[lower] && !strings.Contains(lower, ".") {
			return nil
		}
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := ValidateIP(ip); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIP rejects addresses a model endpoint must never point at.
func ValidateIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return nil
	case ip.Equal(net.ParseIP("169.254.169.254")):
		return fmt.Errorf("%w: metadata service %s", ErrAddressBlocked, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrAddressBlocked, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address %s", ErrAddressBlocked, ip)
	case ip.IsMulticast():
		return fmt.Errorf("%w: multicast address %s", ErrAddressBlocked, ip)
	}
	return nil
}

// Transport returns an http.Transport that revalidates every dialed host.
func (g *HostGuard) Transport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			if err := g.ValidateHost(host); err != nil {
				return nil, fmt.Errorf("connection blocked: %w", err)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
