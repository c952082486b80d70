package viewer

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"threadview/thread"
)

// BrowserFetcher loads the thread page in headless Chrome and returns the
// rendered document. Boards that serve a script challenge before the page
// need it. Cookies are shared with Jar in both directions.
type BrowserFetcher struct {
	URL     string
	Header  http.Header
	Jar     http.CookieJar
	Timeout time.Duration

	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
}

// NewBrowserFetcher starts a browser allocator. Close releases it.
func NewBrowserFetcher(target string, jar http.CookieJar, logger *log.Logger) *BrowserFetcher {
	if logger == nil {
		logger = log.Default()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserFetcher{
		URL:       target,
		Jar:       jar,
		Timeout:   25 * time.Second,
		allocator: allocCtx,
		cancel:    cancel,
		logger:    logger,
	}
}

func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context) (*html.Node, error) {
	if strings.TrimSpace(b.URL) == "" {
		return nil, fmt.Errorf("browser fetch: empty url")
	}
	taskCtx, cancelBrowser := chromedp.NewContext(b.allocator)
	defer cancelBrowser()
	if ctx != nil {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(taskCtx)
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
		defer cancel()
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, b.Timeout)
		defer cancel()
	}

	var mu sync.Mutex
	var mainID network.RequestID
	status := 0
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Type == network.ResourceTypeDocument {
				mu.Lock()
				mainID = e.RequestID
				mu.Unlock()
			}
		case *network.EventResponseReceived:
			mu.Lock()
			if e.RequestID == mainID && e.Response != nil {
				status = int(e.Response.Status)
			}
			mu.Unlock()
		}
	})

	headers := cloneHeader(b.Header)
	actions := []chromedp.Action{network.Enable()}
	if ua := headers.Get("User-Agent"); ua != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
		headers.Del("User-Agent")
	}
	if len(headers) > 0 {
		extra := network.Headers{}
		for k, vs := range headers {
			if len(vs) > 0 {
				extra[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
			}
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(extra).Do(ctx)
		}))
	}
	u, _ := url.Parse(b.URL)
	if b.Jar != nil && u != nil {
		if params := cookieParams(b.Jar.Cookies(u), u); len(params) > 0 {
			actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
				return network.SetCookies(params).Do(ctx)
			}))
		}
	}

	var finalURL, outer string
	var cookies []*network.Cookie
	actions = append(actions,
		chromedp.Navigate(b.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs([]string{b.URL}).Do(ctx)
			return err
		}),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("browser fetch %s: %w", b.URL, err)
	}

	mu.Lock()
	code := status
	mu.Unlock()
	if code >= 400 {
		return nil, fmt.Errorf("browser fetch %s: %w %d", b.URL, thread.ErrStatus, code)
	}
	if b.Jar != nil && len(cookies) > 0 {
		if fu, err := url.Parse(finalURL); err == nil && fu.Host != "" {
			b.Jar.SetCookies(fu, httpCookies(cookies))
		}
	}
	doc, err := html.Parse(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("browser fetch %s: parse: %w", b.URL, err)
	}
	b.logger.Printf("FETCH %s via browser (%d bytes)", finalURL, len(outer))
	return doc, nil
}

func cookieParams(cookies []*http.Cookie, u *url.URL) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Domain == "" {
			p.Domain = u.Hostname()
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires.UTC())
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

func httpCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			hc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		out = append(out, hc)
	}
	return out
}

func cloneHeader(h http.Header) http.Header {
	out := http.Header{}
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}
