package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"localhub/internal/domain"
)

// privateRanges lists all private/reserved CIDR blocks the proxy refuses to reach.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

var parsedRanges []*net.IPNet

func init() {
	for _, cidr := range privateRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		parsedRanges = append(parsedRanges, ipnet)
	}
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLGuard rejects outbound URLs that point at private or reserved addresses.
type URLGuard struct {
	resolver Resolver
}

// NewURLGuard returns a guard using r, or net.DefaultResolver when r is nil.
func NewURLGuard(r Resolver) *URLGuard {
	if r == nil {
		r = net.DefaultResolver
	}
	return &URLGuard{resolver: r}
}

func blocked(detail string) error {
	return domain.NewDomainError("URLGuard.Validate", domain.ErrBlockedURL, detail)
}

// Validate parses rawURL and checks its scheme and every address its host
// resolves to.
func (g *URLGuard) Validate(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, blocked(fmt.Sprintf("invalid URL: %v", err))
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return nil, blocked("missing URL scheme, only http/https allowed")
	default:
		return nil, blocked(fmt.Sprintf("scheme %q not allowed, only http/https", u.Scheme))
	}
	if u.User != nil {
		return nil, blocked("credentials in URL are not allowed")
	}

	host := u.Hostname()
	if host == "" {
		return nil, blocked("empty hostname")
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return nil, blocked(fmt.Sprintf("IP %s is private/reserved", ip))
		}
		return u, nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, blocked(fmt.Sprintf("DNS lookup failed: %v", err))
	}
	if len(addrs) == 0 {
		return nil, blocked(fmt.Sprintf("no addresses for %s", host))
	}
	for _, a := range addrs {
		if IsPrivateIP(a.IP) {
			return nil, blocked(fmt.Sprintf("host %s resolves to private IP %s", host, a.IP))
		}
	}
	return u, nil
}

// IsPrivateIP checks if an IP falls within any private/reserved range.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, ipnet := range parsedRanges {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// NewSafeTransport creates an HTTP transport that re-validates addresses at
// dial time and connects to the validated IP, closing the DNS rebinding window
// between Validate and the actual request.
func (g *URLGuard) NewSafeTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address: %w", err)
			}

			var target net.IP
			if ip := net.ParseIP(host); ip != nil {
				target = ip
			} else {
				addrs, err := g.resolver.LookupIPAddr(ctx, host)
				if err != nil {
					return nil, blocked(fmt.Sprintf("DNS lookup failed for %s: %v", host, err))
				}
				if len(addrs) == 0 {
					return nil, blocked(fmt.Sprintf("no addresses for %s", host))
				}
				for _, a := range addrs {
					if IsPrivateIP(a.IP) {
						return nil, blocked(fmt.Sprintf("%s resolves to private IP %s", host, a.IP))
					}
				}
				target = addrs[0].IP
			}
			if IsPrivateIP(target) {
				return nil, blocked(fmt.Sprintf("IP %s is private/reserved", target))
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(target.String(), port))
		},
		Proxy:                 nil,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewSafeClient returns an HTTP client that uses the safe transport and
// re-validates every redirect hop.
func (g *URLGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: g.NewSafeTransport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			_, err := g.Validate(req.Context(), req.URL.String())
			return err
		},
	}
}
