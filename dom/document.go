package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the in-memory Tree backed by a parsed HTML document.
type Document struct {
	Root *html.Node

	mu   sync.Mutex
	sels map[Role]cascadia.Sel
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{Root: root, sels: make(map[Role]cascadia.Sel)}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render serialises the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// String renders the document, mostly for logs and tests.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

func (d *Document) CreateText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

func (d *Document) Attr(n *html.Node, key string) (string, bool) {
	return lookupAttr(n, key)
}

func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func (d *Document) InsertBefore(parent, child, ref *html.Node) error {
	if parent == nil || child == nil {
		return ErrNilNode
	}
	if ref != nil && ref.Parent != parent {
		return ErrNotChild
	}
	if child == ref {
		return nil
	}
	if isAncestor(child, parent) {
		return ErrCycle
	}
	detach(child)
	parent.InsertBefore(child, ref)
	return nil
}

func (d *Document) RemoveChild(parent, child *html.Node) error {
	if parent == nil || child == nil {
		return ErrNilNode
	}
	if child.Parent != parent {
		return ErrNotChild
	}
	parent.RemoveChild(child)
	return nil
}

func (d *Document) ReplaceChild(parent, newChild, oldChild *html.Node) error {
	if parent == nil || newChild == nil || oldChild == nil {
		return ErrNilNode
	}
	if oldChild.Parent != parent {
		return ErrNotChild
	}
	if newChild == oldChild {
		return nil
	}
	if isAncestor(newChild, parent) {
		return ErrCycle
	}
	detach(newChild)
	next := oldChild.NextSibling
	parent.RemoveChild(oldChild)
	parent.InsertBefore(newChild, next)
	return nil
}

func (d *Document) Query(root *html.Node, role Role) []*html.Node {
	if root == nil || role == "" {
		return nil
	}
	sel := d.selector(role)
	if sel == nil {
		return nil
	}
	return cascadia.QueryAll(root, sel)
}

func (d *Document) selector(role Role) cascadia.Sel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sels == nil {
		d.sels = make(map[Role]cascadia.Sel)
	}
	if sel, ok := d.sels[role]; ok {
		return sel
	}
	sel, err := cascadia.Parse("." + string(role))
	if err != nil {
		sel = nil
	}
	d.sels[role] = sel
	return sel
}

// Playback state lives in attributes so it survives rendering.
const (
	playbackAttr = "data-playback"
	playing      = "playing"
	paused       = "paused"
)

func (d *Document) Play(n *html.Node) error {
	if n == nil {
		return ErrNilNode
	}
	if n.DataAtom != atom.Audio && n.DataAtom != atom.Video {
		return fmt.Errorf("dom: play <%s>: not a media element", n.Data)
	}
	d.SetAttr(n, playbackAttr, playing)
	return nil
}

func (d *Document) Pause(n *html.Node) {
	if n == nil {
		return
	}
	if v, _ := lookupAttr(n, playbackAttr); v == playing {
		d.SetAttr(n, playbackAttr, paused)
	}
}

func (d *Document) Paused(n *html.Node) bool {
	v, _ := lookupAttr(n, playbackAttr)
	return v != playing
}

func (d *Document) SetLoop(n *html.Node, on bool) {
	if on {
		d.SetAttr(n, "loop", "")
		return
	}
	d.RemoveAttr(n, "loop")
}

func (d *Document) Looping(n *html.Node) bool {
	_, ok := lookupAttr(n, "loop")
	return ok
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// isAncestor reports whether a is n or one of n's ancestors.
func isAncestor(a, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}
