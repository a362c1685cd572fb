package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Default pool settings for upstream API traffic.
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 90 * time.Second
	defaultConnTimeout         = 10 * time.Second
	defaultRespTimeout         = 20 * time.Second
)

// PoolConfig configures connection reuse. Zero values use defaults.
type PoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	ConnTimeout         time.Duration
	RespTimeout         time.Duration
}

// NewPooledTransport returns a transport shared by all upstream clients.
func NewPooledTransport(pool PoolConfig) *http.Transport {
	connTimeout := orDuration(pool.ConnTimeout, defaultConnTimeout)
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: orDuration(pool.RespTimeout, defaultRespTimeout),
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          orInt(pool.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost:   orInt(pool.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
		MaxConnsPerHost:       orInt(pool.MaxConnsPerHost, defaultMaxConnsPerHost),
		IdleConnTimeout:       orDuration(pool.IdleConnTimeout, defaultIdleConnTimeout),
	}
}

// New returns a client over transport with an overall request timeout.
// A nil transport uses http.DefaultTransport.
func New(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
