// Package viewer hosts a live thread page: the media controller, the
// thread reconciler and the click registry wired over one document, plus an
// HTTP surface to drive and inspect it.
package viewer

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"golang.org/x/net/html"

	"threadview/compose"
	"threadview/dispatch"
	"threadview/dom"
	"threadview/eventloop"
	"threadview/media"
	"threadview/thread"
)

// RolePostNum marks reference numbers; clicking one quotes the post into
// the reply field.
const RolePostNum dom.Role = "postnum"

// Page is one live thread page. Every method except Close must run on the
// event loop.
type Page struct {
	cfg      Config
	Doc      *dom.Document
	Recorder *dom.Recorder
	Layout   *dom.Layout
	Media    *media.Controller
	Thread   *thread.Reconciler
	Registry *dispatch.Registry
	Fetcher  thread.Fetcher
	Reply    compose.Field

	logger    *log.Logger
	selection string
}

// NewPage wires the page over doc and registers the slots already present.
func NewPage(cfg Config, doc *dom.Document, fetcher thread.Fetcher, loader media.Loader, sched eventloop.Scheduler) *Page {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	p := &Page{
		cfg:      cfg,
		Doc:      doc,
		Recorder: dom.NewRecorder(doc),
		Layout:   dom.NewLayout(doc.Root),
		Registry: dispatch.NewRegistry(cfg.Logger),
		Fetcher:  fetcher,
		logger:   cfg.Logger,
	}
	if cfg.MutationLog > 0 {
		p.Recorder.Limit = cfg.MutationLog
	}
	if cfg.LogMutation {
		p.Recorder.OnMutation = func(m dom.Mutation) { logMutation(p.logger, m) }
	}
	p.Media = media.New(cfg.Media(), media.Deps{
		Root:      doc.Root,
		Tree:      p.Recorder,
		Player:    p.Recorder,
		Viewport:  p.Layout,
		Scheduler: sched,
		Loader:    loader,
	})
	tcfg := thread.Config{
		Updates: cfg.Updates,
		Logger:  cfg.Logger,
		OnInsert: func(reply *html.Node) {
			if n := p.Media.Scan(reply); n > 0 {
				p.logger.Printf("RECONCILE registered %d new media slots", n)
			}
		},
	}
	if cfg.Sanitize {
		tcfg.Sanitizer = thread.NewPolicySanitizer()
	}
	p.Thread = thread.NewReconciler(tcfg, p.Recorder, doc.Root, fetcher, sched)

	p.Media.Register(p.Registry)
	p.Thread.Register(p.Registry)
	p.Registry.HandleFunc(RolePostNum, p.quote)
	p.Media.Scan(doc.Root)
	return p
}

func (p *Page) quote(ev dispatch.Event) bool {
	ref := dom.Text(ev.Target)
	if ref == "" {
		return false
	}
	p.Reply.Insert(ref, p.selection)
	return true
}

// Click dispatches a click on target with selection as the current text
// selection. It reports whether the default navigation was suppressed.
func (p *Page) Click(target *html.Node, selection string) bool {
	p.selection = selection
	defer func() { p.selection = "" }()
	return p.Registry.Dispatch(target)
}

// ClickPath resolves path in the live document and clicks it.
func (p *Page) ClickPath(path, selection string) (bool, error) {
	n, err := dom.Resolve(p.Doc.Root, path)
	if err != nil {
		return false, err
	}
	return p.Click(n, selection), nil
}

// Close releases the media slots of the page.
func (p *Page) Close() {
	p.Media.Close()
}

// Bootstrap fetches the page at cfg.URL and wires it to a new event loop.
// The returned cleanup releases the browser when one was started.
func Bootstrap(ctx context.Context, cfg Config) (*Page, *eventloop.Loop, func(), error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil, nil, fmt.Errorf("viewer: no thread url configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	mode := cfg.Fetch
	header := http.Header{}
	if site := newSiteConfigStore(cfg.SitesDir).Find(cfg.URL); site != nil {
		if site.Fetch != "" {
			mode = site.Fetch
		}
		for k, v := range site.Headers {
			header.Set(k, v)
		}
	}

	cleanup := func() {}
	httpFetcher := thread.NewHTTPFetcher(cfg.URL, cfg.FetchTimeout)
	httpFetcher.Header = header
	var fetcher thread.Fetcher = httpFetcher
	if mode == FetchBrowser {
		jar := httpFetcher.Client.Jar
		if jar == nil {
			jar, _ = cookiejar.New(nil)
		}
		bf := NewBrowserFetcher(cfg.URL, jar, cfg.Logger)
		bf.Header = header
		if cfg.FetchTimeout > 0 {
			bf.Timeout = cfg.FetchTimeout
		}
		fetcher = bf
		cleanup = bf.Close
	}

	root, err := fetcher.Fetch(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	loader := media.NewHTTPLoader(httpFetcher.Client, cfg.URL)
	loader.Header = header
	loop := eventloop.New(cfg.Logger)
	page := NewPage(cfg, dom.NewDocument(root), fetcher, loader, loop)
	cfg.Logger.Printf("FETCH %s: %d media slots", cfg.URL, page.Media.Len())
	return page, loop, cleanup, nil
}
