package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/config"
	"localhub/internal/infra/logger"
	"localhub/internal/infra/tracer"
	"localhub/internal/security"
)

// ProxyCacheControl replaces whatever caching policy the upstream sent.
const ProxyCacheControl = "s-maxage=3600, stale-while-revalidate=3600"

const defaultMaxImageBytes = 10 << 20

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// PhotoResolver maps a provider photo reference to the upstream image URL.
type PhotoResolver interface {
	PhotoURL(ref string) (string, bool)
}

// ImageProxy streams third-party images through the site's own origin.
type ImageProxy struct {
	guard    *security.URLGuard // nil when private targets are allowed
	photos   PhotoResolver      // nil disables ?ref= lookups
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewImageProxy creates a proxy. Unless cfg.AllowPrivate is set, targets are
// checked by guard and fetched with its dial-time validating client.
func NewImageProxy(cfg config.ImageProxyConfig, guard *security.URLGuard, client *http.Client, logger *slog.Logger) *ImageProxy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	p := &ImageProxy{client: client, maxBytes: cfg.MaxBytes, logger: logger}
	if p.maxBytes <= 0 {
		p.maxBytes = defaultMaxImageBytes
	}
	if !cfg.AllowPrivate {
		if guard == nil {
			guard = security.NewURLGuard(nil)
		}
		p.guard = guard
		if p.client == nil {
			p.client = guard.NewSafeClient(timeout)
		}
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: timeout}
	}
	return p
}

// WithPhotos enables ?ref= requests resolved by photos.
func (p *ImageProxy) WithPhotos(photos PhotoResolver) *ImageProxy {
	p.photos = photos
	return p
}

// ServeHTTP implements http.Handler. The target is either ?url= or a
// provider photo reference in ?ref=.
func (p *ImageProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if ref := r.URL.Query().Get("ref"); target == "" && ref != "" && p.photos != nil {
		target, _ = p.photos.PhotoURL(ref)
	}
	if target == "" {
		writeError(w, http.StatusBadRequest, domain.CodeImageMissingURL)
		return
	}

	ctx, span := tracer.StartSpan(r.Context(), "imageproxy.fetch")
	defer span.End()

	u, err := p.check(ctx, target)
	if err != nil {
		p.logger.Warn("image proxy blocked", "url", logger.RedactURL(target), "error", err)
		tracer.RecordError(span, err)
		writeError(w, http.StatusBadRequest, domain.CodeBlockedURL)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeImageFetchFailed)
		return
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("image proxy fetch failed", "url", logger.RedactURL(target), "error", err)
		tracer.RecordError(span, err)
		writeError(w, http.StatusBadRequest, domain.CodeImageFetchFailed)
		return
	}
	defer resp.Body.Close()

	span.SetAttributes(tracer.IntAttr("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.ContentLength > p.maxBytes {
		writeError(w, http.StatusBadRequest, domain.CodeImageBadUpstream)
		return
	}

	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
	h.Del("Content-Security-Policy")
	h.Del("Set-Cookie")
	h.Set("Cache-Control", ProxyCacheControl)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, io.LimitReader(resp.Body, p.maxBytes)); err != nil {
		p.logger.Debug("image proxy copy interrupted", "error", err)
	}
}

func (p *ImageProxy) check(ctx context.Context, target string) (*url.URL, error) {
	if p.guard != nil {
		return p.guard.Validate(ctx, target)
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewDomainError("ImageProxy.check", domain.ErrBlockedURL, "only absolute http(s) URLs")
	}
	return u, nil
}
