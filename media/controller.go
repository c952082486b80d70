package media

import (
	"log"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"threadview/dom"
	"threadview/eventloop"
)

const (
	pendingAttr = "data-loading"
	failedAttr  = "data-failed"
)

// Config tunes the controller.
type Config struct {
	// PollInterval is the first readiness poll delay.
	PollInterval time.Duration
	// PollBackoff multiplies the delay after every unsuccessful poll.
	PollBackoff float64
	// MaxPollInterval caps the poll delay.
	MaxPollInterval time.Duration
	// LoadTimeout turns a load that never becomes ready into a failure.
	// Zero disables the timeout.
	LoadTimeout time.Duration
	// ScrollMargin is kept above a collapsed slot when the view is adjusted.
	ScrollMargin int
	// PendingOpacity dims the thumbnail while its expansion loads.
	PendingOpacity string
	Logger         *log.Logger
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval:    15 * time.Millisecond,
		PollBackoff:     1.5,
		MaxPollInterval: 500 * time.Millisecond,
		LoadTimeout:     30 * time.Second,
		ScrollMargin:    18,
		PendingOpacity:  "0.75",
		Logger:          log.Default(),
	}
}

func (c *Config) defaults() {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PollBackoff < 1 {
		c.PollBackoff = 1
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = c.PollInterval
	}
	if c.ScrollMargin < 0 {
		c.ScrollMargin = 0
	}
	if c.PendingOpacity == "" {
		c.PendingOpacity = def.PendingOpacity
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Deps are the capabilities the controller consumes.
type Deps struct {
	Root      *html.Node
	Tree      dom.Tree
	Player    dom.Player
	Viewport  dom.Viewport
	Scheduler eventloop.Scheduler
	Loader    Loader
}

// Controller owns the slots of one page. All methods must run on the event
// loop.
type Controller struct {
	cfg    Config
	root   *html.Node
	tree   dom.Tree
	player dom.Player
	view   dom.Viewport
	sched  eventloop.Scheduler
	loader Loader
	logger *log.Logger

	slots   map[*html.Node]*Slot // by link
	widgets map[*html.Node]*Slot // by embed widget
	tokens  uint64
}

// New wires a controller.
func New(cfg Config, deps Deps) *Controller {
	cfg.defaults()
	return &Controller{
		cfg:     cfg,
		root:    deps.Root,
		tree:    deps.Tree,
		player:  deps.Player,
		view:    deps.Viewport,
		sched:   deps.Scheduler,
		loader:  deps.Loader,
		logger:  cfg.Logger,
		slots:   make(map[*html.Node]*Slot),
		widgets: make(map[*html.Node]*Slot),
	}
}

// Scan registers every slot below root and returns how many were new.
func (c *Controller) Scan(root *html.Node) int {
	n := 0
	for _, link := range c.tree.Query(root, RoleLink) {
		if _, ok := c.slots[link]; ok {
			continue
		}
		if c.register(link) != nil {
			n++
		}
	}
	return n
}

// Len returns the number of registered slots.
func (c *Controller) Len() int { return len(c.slots) }

// SlotFor returns the slot that node belongs to: the link itself, anything
// inside it, or anything inside an embed widget. Unknown links are
// registered on first use.
func (c *Controller) SlotFor(n *html.Node) *Slot {
	if n == nil {
		return nil
	}
	if w := dom.Closest(n, RoleEmbed); w != nil {
		if s, ok := c.widgets[w]; ok {
			return s
		}
	}
	link := dom.Closest(n, RoleLink)
	if link == nil {
		return nil
	}
	if s, ok := c.slots[link]; ok {
		return s
	}
	return c.register(link)
}

func (c *Controller) register(link *html.Node) *Slot {
	s := newSlot(link)
	if s == nil {
		return nil
	}
	c.slots[link] = s
	return s
}

// Expand starts expanding s. It is a no-op unless s is collapsed.
func (c *Controller) Expand(s *Slot) {
	if s == nil || s.State != Collapsed {
		return
	}
	switch s.Kind {
	case KindImage:
		c.expandImage(s)
	case KindAudio, KindVideo:
		c.expandEmbed(s)
	}
}

// Collapse restores the thumbnail of s. Collapsing a loading slot cancels
// the load wait; the resource itself is kept.
func (c *Controller) Collapse(s *Slot) {
	if s == nil {
		return
	}
	switch s.State {
	case Loading:
		c.cancel(s)
		c.clearPending(s)
		s.State = Collapsed
	case Expanded, Failed:
		if s.Kind == KindImage {
			c.collapseImage(s)
		} else {
			c.collapseEmbed(s)
		}
	}
}

// Toggle expands a collapsed slot and collapses an expanded one.
func (c *Controller) Toggle(s *Slot) {
	if s == nil {
		return
	}
	if s.State == Collapsed {
		c.Expand(s)
		return
	}
	if s.Expanded() {
		c.Collapse(s)
	}
}

func (c *Controller) expandImage(s *Slot) {
	if s.Expansion != nil && (s.ready || s.failed) {
		if err := c.swap(s.Link, s.Thumb, s.Expansion, placeBefore); err != nil {
			c.logger.Printf("EXPAND %s: swap: %v", s.Source, err)
			return
		}
		s.State = c.expandedState(s)
		c.logger.Printf("EXPAND %s (cached)", s.Source)
		return
	}
	if s.Expansion == nil {
		exp := c.tree.CreateElement("img")
		c.tree.SetAttr(exp, "class", string(RoleExpansion))
		c.tree.SetAttr(exp, "src", s.Source)
		dom.Hide(c.tree, exp)
		if err := c.tree.InsertBefore(s.Link, exp, nil); err != nil {
			c.logger.Printf("EXPAND %s: attach: %v", s.Source, err)
			return
		}
		s.Expansion = exp
	}
	if s.res == nil {
		s.res = c.loader.Load(s.Source)
	}
	dom.SetStyleProp(c.tree, s.Thumb, "opacity", c.cfg.PendingOpacity)
	c.tree.SetAttr(s.Thumb, pendingAttr, "1")
	s.State = Loading
	s.started = c.sched.Now()
	s.delay = c.cfg.PollInterval
	c.schedulePoll(s)
	c.logger.Printf("EXPAND %s (loading)", s.Source)
}

func (c *Controller) collapseImage(s *Slot) {
	place := placeAfter
	if s.failed {
		place = placeNone
	}
	if err := c.swap(s.Link, s.Expansion, s.Thumb, place); err != nil {
		c.logger.Printf("COLLAPSE %s: swap: %v", s.Source, err)
		return
	}
	s.State = Collapsed
	c.compensateScroll(s)
	c.logger.Printf("COLLAPSE %s", s.Source)
}

// finish completes a load. withDims applies the declared dimensions.
func (c *Controller) finish(s *Slot, withDims bool) {
	c.cancel(s)
	if withDims && s.Width > 0 && s.Height > 0 {
		c.tree.SetAttr(s.Expansion, "width", strconv.Itoa(s.Width))
		c.tree.SetAttr(s.Expansion, "height", strconv.Itoa(s.Height))
	}
	if err := c.swap(s.Link, s.Thumb, s.Expansion, placeBefore); err != nil {
		c.logger.Printf("EXPAND %s: swap: %v", s.Source, err)
		c.clearPending(s)
		s.State = Collapsed
		return
	}
	c.clearPending(s)
	s.State = c.expandedState(s)
}

func (c *Controller) fail(s *Slot, err error) {
	s.failed = true
	c.tree.SetAttr(s.Expansion, failedAttr, "1")
	c.logger.Printf("EXPAND %s: load failed: %v", s.Source, err)
	c.finish(s, false)
}

func (c *Controller) expandedState(s *Slot) State {
	if s.failed {
		return Failed
	}
	return Expanded
}

func (c *Controller) clearPending(s *Slot) {
	c.tree.RemoveAttr(s.Thumb, pendingAttr)
	dom.RemoveStyleProp(c.tree, s.Thumb, "opacity")
}

// compensateScroll keeps the collapsed slot in view when the collapse moved
// it above the viewport.
func (c *Controller) compensateScroll(s *Slot) {
	if c.view == nil || s.Container == nil {
		return
	}
	cur := c.view.ScrollTop()
	top, ok := c.view.Top(s.Container)
	if !ok || top >= 0 {
		return
	}
	c.view.SetScrollTop(cur + top - c.cfg.ScrollMargin)
}

type placement int

const (
	placeNone placement = iota
	placeBefore
	placeAfter
)

// swap makes incoming visible in place of outgoing inside parent:
// detach incoming, un-hide it, replace outgoing with it in one call, then
// hide outgoing and put it back next to incoming (or leave it detached).
// After every step exactly one of the two is attached and visible.
func (c *Controller) swap(parent, outgoing, incoming *html.Node, place placement) error {
	if parent == nil || outgoing == nil || incoming == nil {
		return dom.ErrNilNode
	}
	if outgoing.Parent != parent {
		return dom.ErrNotChild
	}
	if incoming.Parent != nil {
		if err := c.tree.RemoveChild(incoming.Parent, incoming); err != nil {
			return err
		}
	}
	dom.Show(c.tree, incoming)
	if err := c.tree.ReplaceChild(parent, incoming, outgoing); err != nil {
		return err
	}
	dom.Hide(c.tree, outgoing)
	switch place {
	case placeBefore:
		return c.tree.InsertBefore(parent, outgoing, incoming)
	case placeAfter:
		return c.tree.InsertBefore(parent, outgoing, incoming.NextSibling)
	}
	return nil
}

// Close releases every slot: playback stops, embed widgets are detached and
// pending loads are cancelled. The controller must not be used afterwards.
func (c *Controller) Close() {
	for _, s := range c.slots {
		c.release(s)
	}
	c.slots = make(map[*html.Node]*Slot)
	c.widgets = make(map[*html.Node]*Slot)
}

func (c *Controller) release(s *Slot) {
	c.cancel(s)
	if s.Kind == KindImage {
		return
	}
	if s.Expanded() {
		c.collapseEmbed(s)
	}
	if s.media != nil && c.player != nil {
		c.player.Pause(s.media)
	}
	if w := s.Expansion; w != nil {
		if w.Parent != nil {
			_ = c.tree.RemoveChild(w.Parent, w)
		}
		delete(c.widgets, w)
	}
	s.Expansion, s.media, s.toggle = nil, nil, nil
}
