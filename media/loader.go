package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/webp"
)

// ErrLoadTimeout is reported when a resource does not become ready in time.
var ErrLoadTimeout = errors.New("media: load timed out")

// Resource is a pending image load. It becomes ready once its intrinsic
// dimensions are known or fails with an error.
type Resource interface {
	Size() (w, h int, ok bool)
	Err() error
}

// Loader starts resource loads.
type Loader interface {
	Load(src string) Resource
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(src string) Resource

func (f LoaderFunc) Load(src string) Resource { return f(src) }

type pendingResource struct {
	mu   sync.Mutex
	w, h int
	ok   bool
	err  error
}

func (r *pendingResource) Size() (int, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h, r.ok
}

func (r *pendingResource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *pendingResource) settle(w, h int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.err = err
		return
	}
	r.w, r.h, r.ok = w, h, true
}

const maxProbeBytes = 32 << 20

// HTTPLoader fetches images over HTTP and decodes their header to learn the
// intrinsic dimensions. Loads run on their own goroutines; results are read
// by the readiness watcher.
type HTTPLoader struct {
	Client  *http.Client
	BaseURL string
	Header  http.Header
	Timeout time.Duration

	fetches atomic.Int64
}

// NewHTTPLoader returns a loader resolving relative sources against base.
func NewHTTPLoader(client *http.Client, base string) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{Client: client, BaseURL: base, Timeout: 60 * time.Second}
}

// Fetches returns how many loads were started.
func (l *HTTPLoader) Fetches() int64 { return l.fetches.Load() }

func (l *HTTPLoader) Load(src string) Resource {
	res := &pendingResource{}
	target, err := l.resolve(src)
	if err != nil {
		res.settle(0, 0, err)
		return res
	}
	l.fetches.Add(1)
	go func() {
		w, h, err := l.probe(target)
		res.settle(w, h, err)
	}()
	return res
}

func (l *HTTPLoader) resolve(src string) (string, error) {
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("media: bad source %q: %w", src, err)
	}
	if l.BaseURL == "" || ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", fmt.Errorf("media: bad base %q: %w", l.BaseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (l *HTTPLoader) probe(target string) (int, int, error) {
	ctx := context.Background()
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	for k, vs := range l.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("media: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, 0, fmt.Errorf("media: fetch %s: status %d", target, resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(io.LimitReader(resp.Body, maxProbeBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("media: decode %s: %w", target, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("media: decode %s: empty image", target)
	}
	return cfg.Width, cfg.Height, nil
}
