package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Op is the kind of mutation a Recorder observed.
type Op string

const (
	OpInsert  Op = "insert"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpAttr    Op = "attr"
	OpAttrDel Op = "attr_del"
	OpPlay    Op = "play"
	OpPause   Op = "pause"
	OpLoop    Op = "loop"
)

// Mutation is a single recorded tree change.
type Mutation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Tag   string `json:"tag,omitempty"`
	Name  string `json:"name,omitempty"`  // attribute name for attr/attr_del
	Value string `json:"value,omitempty"` // new attribute value
}

const defaultRecorderLimit = 1024

// Recorder is a Tree (and Player when the wrapped tree is one) that records
// every mutation before forwarding it. Only the last Limit mutations are
// kept; Count keeps the total.
type Recorder struct {
	Tree  Tree
	Limit int
	// OnMutation, when set, observes every mutation as it happens.
	OnMutation func(Mutation)

	mu    sync.Mutex
	log   []Mutation
	count int
}

// NewRecorder wraps t.
func NewRecorder(t Tree) *Recorder {
	return &Recorder{Tree: t, Limit: defaultRecorderLimit}
}

// Count returns the number of mutations recorded since the last Reset.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Mutations returns a copy of the retained mutations, oldest first.
func (r *Recorder) Mutations() []Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mutation(nil), r.log...)
}

// Reset clears the log and the counter.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.log = nil
	r.count = 0
	r.mu.Unlock()
}

func (r *Recorder) record(m Mutation) {
	r.mu.Lock()
	limit := r.Limit
	if limit <= 0 {
		limit = defaultRecorderLimit
	}
	r.count++
	r.log = append(r.log, m)
	if len(r.log) > limit {
		r.log = append(r.log[:0], r.log[len(r.log)-limit:]...)
	}
	hook := r.OnMutation
	r.mu.Unlock()
	if hook != nil {
		hook(m)
	}
}

func (r *Recorder) CreateElement(tag string) *html.Node { return r.Tree.CreateElement(tag) }

func (r *Recorder) CreateText(data string) *html.Node { return r.Tree.CreateText(data) }

func (r *Recorder) Attr(n *html.Node, key string) (string, bool) { return r.Tree.Attr(n, key) }

func (r *Recorder) Query(root *html.Node, role Role) []*html.Node { return r.Tree.Query(root, role) }

func (r *Recorder) SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	if cur, ok := r.Tree.Attr(n, key); ok && cur == val {
		return
	}
	r.Tree.SetAttr(n, key, val)
	r.record(Mutation{Op: OpAttr, Path: Path(n), Tag: n.Data, Name: key, Value: val})
}

func (r *Recorder) RemoveAttr(n *html.Node, key string) {
	if _, ok := r.Tree.Attr(n, key); !ok {
		return
	}
	r.Tree.RemoveAttr(n, key)
	r.record(Mutation{Op: OpAttrDel, Path: Path(n), Tag: n.Data, Name: key})
}

func (r *Recorder) InsertBefore(parent, child, ref *html.Node) error {
	if err := r.Tree.InsertBefore(parent, child, ref); err != nil {
		return err
	}
	r.record(Mutation{Op: OpInsert, Path: Path(child), Tag: child.Data})
	return nil
}

func (r *Recorder) RemoveChild(parent, child *html.Node) error {
	path := Path(child)
	if err := r.Tree.RemoveChild(parent, child); err != nil {
		return err
	}
	r.record(Mutation{Op: OpRemove, Path: path, Tag: child.Data})
	return nil
}

func (r *Recorder) ReplaceChild(parent, newChild, oldChild *html.Node) error {
	if err := r.Tree.ReplaceChild(parent, newChild, oldChild); err != nil {
		return err
	}
	r.record(Mutation{Op: OpReplace, Path: Path(newChild), Tag: newChild.Data, Name: oldChild.Data})
	return nil
}

func (r *Recorder) Play(n *html.Node) error {
	p, ok := r.Tree.(Player)
	if !ok {
		return nil
	}
	if err := p.Play(n); err != nil {
		return err
	}
	r.record(Mutation{Op: OpPlay, Path: Path(n), Tag: n.Data})
	return nil
}

func (r *Recorder) Pause(n *html.Node) {
	p, ok := r.Tree.(Player)
	if !ok || p.Paused(n) {
		return
	}
	p.Pause(n)
	r.record(Mutation{Op: OpPause, Path: Path(n), Tag: n.Data})
}

func (r *Recorder) Paused(n *html.Node) bool {
	if p, ok := r.Tree.(Player); ok {
		return p.Paused(n)
	}
	return true
}

func (r *Recorder) SetLoop(n *html.Node, on bool) {
	p, ok := r.Tree.(Player)
	if !ok || p.Looping(n) == on {
		return
	}
	p.SetLoop(n, on)
	val := "off"
	if on {
		val = "on"
	}
	r.record(Mutation{Op: OpLoop, Path: Path(n), Tag: n.Data, Value: val})
}

func (r *Recorder) Looping(n *html.Node) bool {
	if p, ok := r.Tree.(Player); ok {
		return p.Looping(n)
	}
	return false
}
