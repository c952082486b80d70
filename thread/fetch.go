package thread

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var (
	// ErrStatus is wrapped by fetch errors caused by a non-success response.
	ErrStatus = errors.New("thread: unexpected status")

	// ErrTooLarge is returned for pages over the fetcher's size limit.
	ErrTooLarge = errors.New("thread: page too large")
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) threadview/1.0"
	maxPageBytes     = 16 << 20
)

type cachedPage struct {
	etag         string
	lastModified string
	body         []byte
	contentType  string
	stored       time.Time
}

// HTTPFetcher fetches the page at URL. It keeps the last response and
// revalidates it with a conditional request, so an unchanged page costs a
// 304 and reconciles to nothing.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
	Header http.Header
	// MaxBytes caps the decoded page size. Zero means 16 MiB.
	MaxBytes int64

	mu    sync.Mutex
	cache *cachedPage
	now   func() time.Time
}

// NewHTTPFetcher returns a fetcher for url with a cookie jar of its own.
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	jar, _ := cookiejar.New(nil)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout, Jar: jar},
		now:    time.Now,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	req.Header.Set("Accept-Encoding", "gzip")

	f.mu.Lock()
	cached := f.cache
	f.mu.Unlock()
	if cached != nil {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		return parsePage(cached.body, cached.contentType)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %w %d", f.URL, ErrStatus, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
		}
		defer gr.Close()
		reader = gr
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = maxPageBytes
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read: %w", f.URL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("fetch %s: %w (over %d bytes)", f.URL, ErrTooLarge, limit)
	}
	ct := resp.Header.Get("Content-Type")
	doc, err := parsePage(body, ct)
	if err != nil {
		return nil, err
	}

	etag, lm := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
	f.mu.Lock()
	if etag != "" || lm != "" {
		f.cache = &cachedPage{etag: etag, lastModified: lm, body: body, contentType: ct, stored: f.clock()}
	} else {
		f.cache = nil
	}
	f.mu.Unlock()
	return doc, nil
}

// Cached reports whether a validated copy of the page is held.
func (f *HTTPFetcher) Cached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache != nil
}

func (f *HTTPFetcher) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// parsePage decodes body using the charset of contentType or the document's
// own meta declaration.
func parsePage(body []byte, contentType string) (*html.Node, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}
