package thread

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/net/html"

	"threadview/dispatch"
	"threadview/dom"
	"threadview/eventloop"
)

// Fetcher retrieves a fresh copy of the page.
type Fetcher interface {
	Fetch(ctx context.Context) (*html.Node, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*html.Node, error)

func (f FetcherFunc) Fetch(ctx context.Context) (*html.Node, error) { return f(ctx) }

// Sanitizer cleans a reply subtree before it is inserted into the live page.
type Sanitizer interface {
	Sanitize(n *html.Node) (*html.Node, error)
}

// Stats summarizes one reconcile.
type Stats struct {
	Posts     int `json:"posts"`     // posts whose back-reference list changed
	Truncated int `json:"truncated"` // back-reference tokens removed
	Appended  int `json:"appended"`  // back-reference tokens added
	Inserted  int `json:"inserted"`  // new replies
}

// Changed reports whether the reconcile mutated the page.
func (s Stats) Changed() bool {
	return s.Truncated+s.Appended+s.Inserted > 0
}

// Config holds reconciler options.
type Config struct {
	// Updates enables the manual refresh trigger.
	Updates   bool
	Sanitizer Sanitizer
	// OnInsert is called with every inserted reply once the reconcile has
	// been applied.
	OnInsert func(reply *html.Node)
	Logger   *log.Logger
}

// Reconciler merges fresh copies of a thread into the live page. Reconcile,
// Refresh and Trigger must run on the event loop.
type Reconciler struct {
	cfg     Config
	tree    dom.Tree
	root    *html.Node
	fetcher Fetcher
	sched   eventloop.Scheduler
	logger  *log.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewReconciler returns a reconciler for the thread below root.
func NewReconciler(cfg Config, tree dom.Tree, root *html.Node, fetcher Fetcher, sched eventloop.Scheduler) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Reconciler{
		cfg:     cfg,
		tree:    tree,
		root:    root,
		fetcher: fetcher,
		sched:   sched,
		logger:  cfg.Logger,
	}
}

type stepKind int

const (
	stepRemove stepKind = iota
	stepAppend
	stepInsertBefore
)

type step struct {
	kind   stepKind
	parent *html.Node
	node   *html.Node
	ref    *html.Node
}

type plan struct {
	steps    []step
	inserted []*html.Node
	stats    Stats
}

// Reconcile merges fresh into the live page. The whole merge is planned
// before the first mutation, so an error leaves the page untouched.
func (r *Reconciler) Reconcile(fresh *html.Node) (Stats, error) {
	p, err := r.plan(fresh)
	if err != nil {
		r.logger.Printf("RECONCILE aborted: %v", err)
		return Stats{}, err
	}
	if err := r.apply(p); err != nil {
		r.logger.Printf("RECONCILE apply: %v", err)
		return p.stats, err
	}
	if p.stats.Changed() {
		r.logger.Printf("RECONCILE posts=%d truncated=%d appended=%d inserted=%d",
			p.stats.Posts, p.stats.Truncated, p.stats.Appended, p.stats.Inserted)
	}
	if r.cfg.OnInsert != nil {
		for _, n := range p.inserted {
			r.cfg.OnInsert(n)
		}
	}
	return p.stats, nil
}

func (r *Reconciler) plan(fresh *html.Node) (*plan, error) {
	if fresh == nil {
		return nil, fmt.Errorf("fresh document: %w", dom.ErrNilNode)
	}
	live, err := Parse(r.tree, r.root)
	if err != nil {
		return nil, fmt.Errorf("live page: %w", err)
	}
	next, err := Parse(r.tree, fresh)
	if err != nil {
		return nil, fmt.Errorf("fresh document: %w", err)
	}
	if live.OP.ID != next.OP.ID {
		return nil, fmt.Errorf("%w: %s != %s", ErrMismatch, next.OP.ID, live.OP.ID)
	}

	p := &plan{}
	r.planBackRefs(p, live.OP, next.OP)
	for _, fp := range next.Replies {
		if lp := live.Post(fp.ID); lp != nil {
			r.planBackRefs(p, lp, fp)
			continue
		}
		n := dom.Clone(fp.Node)
		if r.cfg.Sanitizer != nil {
			clean, err := r.cfg.Sanitizer.Sanitize(n)
			if err != nil {
				return nil, fmt.Errorf("sanitize reply %s: %w", fp.ID, err)
			}
			n = clean
		}
		p.steps = append(p.steps, step{kind: stepInsertBefore, parent: live.Bottom.Parent, node: n, ref: live.Bottom})
		p.inserted = append(p.inserted, n)
		p.stats.Inserted++
	}
	return p, nil
}

// planBackRefs adds the steps converging the list of lp to the one of fp.
func (r *Reconciler) planBackRefs(p *plan, lp, fp *Post) {
	freshNodes := fp.Tokens(r.tree)
	liveNodes := lp.Tokens(r.tree)
	keep, add := DiffBackRefs(tokenTexts(liveNodes), tokenTexts(freshNodes))
	if keep == len(liveNodes) && len(add) == 0 {
		return
	}
	container := lp.BackRefs
	if container == nil {
		if lp.Info == nil || fp.BackRefs == nil {
			r.logger.Printf("RECONCILE post %s: no place for back-references", lp.ID)
			return
		}
		// The live post has no list yet: bring over an empty one.
		container = dom.Clone(fp.BackRefs)
		for c := container.FirstChild; c != nil; {
			next := c.NextSibling
			container.RemoveChild(c)
			c = next
		}
		p.steps = append(p.steps, step{kind: stepAppend, parent: lp.Info, node: container})
	}
	// Tokens travel with the separator run in front of them, so the list
	// renders the way the fresh one does.
	parent, ref := container, (*html.Node)(nil)
	if len(liveNodes) > 0 {
		last := liveNodes[len(liveNodes)-1]
		parent, ref = last.Parent, last.NextSibling
	}
	for _, n := range liveNodes[keep:] {
		for _, sep := range separatorRun(n) {
			p.steps = append(p.steps, step{kind: stepRemove, parent: n.Parent, node: sep})
		}
		p.steps = append(p.steps, step{kind: stepRemove, parent: n.Parent, node: n})
	}
	for _, n := range freshNodes[keep:] {
		for _, sep := range separatorRun(n) {
			p.steps = append(p.steps, step{kind: stepInsertBefore, parent: parent, node: dom.Clone(sep), ref: ref})
		}
		p.steps = append(p.steps, step{kind: stepInsertBefore, parent: parent, node: dom.Clone(n), ref: ref})
	}
	p.stats.Posts++
	p.stats.Truncated += len(liveNodes) - keep
	p.stats.Appended += len(add)
}

// separatorRun returns the siblings between tok and the previous token, in
// document order.
func separatorRun(tok *html.Node) []*html.Node {
	var run []*html.Node
	for sib := tok.PrevSibling; sib != nil && !dom.HasRole(sib, RoleBackRef); sib = sib.PrevSibling {
		run = append(run, sib)
	}
	for i, j := 0, len(run)-1; i < j; i, j = i+1, j-1 {
		run[i], run[j] = run[j], run[i]
	}
	return run
}

func (r *Reconciler) apply(p *plan) error {
	for _, s := range p.steps {
		var err error
		switch s.kind {
		case stepRemove:
			err = r.tree.RemoveChild(s.parent, s.node)
		case stepAppend:
			err = r.tree.InsertBefore(s.parent, s.node, nil)
		case stepInsertBefore:
			err = r.tree.InsertBefore(s.parent, s.node, s.ref)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Refresh fetches the page and reconciles it. It blocks for the fetch.
func (r *Reconciler) Refresh(ctx context.Context) (Stats, error) {
	fresh, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.logger.Printf("FETCH failed: %v", err)
		return Stats{}, err
	}
	return r.Reconcile(fresh)
}

// Trigger starts a refresh in the background and reconciles on the event
// loop when the fetch completes. done, when set, is called on the loop with
// the outcome. A trigger while another is in flight returns false.
func (r *Reconciler) Trigger(ctx context.Context, done func(Stats, error)) bool {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return false
	}
	r.inFlight = true
	r.mu.Unlock()

	go func() {
		fresh, err := r.fetcher.Fetch(ctx)
		r.sched.Post(func() {
			r.mu.Lock()
			r.inFlight = false
			r.mu.Unlock()
			var st Stats
			if err != nil {
				r.logger.Printf("FETCH failed: %v", err)
			} else {
				st, err = r.Reconcile(fresh)
			}
			if done != nil {
				done(st, err)
			}
		})
	}()
	return true
}

// InFlight reports whether a triggered refresh has not completed yet.
func (r *Reconciler) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Register installs the refresh trigger handler. With updates disabled the
// trigger follows its link.
func (r *Reconciler) Register(reg *dispatch.Registry) {
	reg.HandleFunc(RoleUpdate, func(dispatch.Event) bool {
		if !r.cfg.Updates {
			return false
		}
		if !r.Trigger(context.Background(), nil) {
			r.logger.Printf("CLICK %s: refresh already in flight", RoleUpdate)
		}
		return true
	})
}
