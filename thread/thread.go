// Package thread merges a freshly fetched copy of a thread into the live
// page. Only two update shapes are handled: the ordered back-reference list
// of every post and the append-only list of new replies.
package thread

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"threadview/dom"
)

// Role markers of thread markup.
const (
	RoleThread   dom.Role = "thread"
	RoleOP       dom.Role = "op"
	RoleReply    dom.Role = "reply"
	RoleInfo     dom.Role = "postinfo"
	RoleBackRefs dom.Role = "backrefs"
	RoleBackRef  dom.Role = "bref"
	RoleBottom   dom.Role = "bottom"
	RoleUpdate   dom.Role = "threadupdate"
)

var (
	// ErrNoThread is returned for documents without a recognizable thread:
	// a thread container holding an identified original post and a bottom
	// anchor.
	ErrNoThread = errors.New("thread: no thread in document")

	// ErrMismatch is returned when the fresh document holds a different thread.
	ErrMismatch = errors.New("thread: fresh document is a different thread")
)

// Post is one post of a thread.
type Post struct {
	ID       string
	Node     *html.Node
	Info     *html.Node
	BackRefs *html.Node // nil when the post has no back-reference list
	OP       bool
}

// Tokens returns the back-reference token nodes of p in order.
func (p *Post) Tokens(t dom.Tree) []*html.Node {
	if p.BackRefs == nil {
		return nil
	}
	return t.Query(p.BackRefs, RoleBackRef)
}

// Thread is the parsed structure of a thread container.
type Thread struct {
	Node    *html.Node
	OP      *Post
	Replies []*Post
	Bottom  *html.Node

	byID map[string]*Post
}

// Post returns the post with the given identity, the original post included.
func (th *Thread) Post(id string) *Post {
	return th.byID[id]
}

// Parse reads the first thread below root. Replies without an identity are
// ignored; later duplicates of an identity are too.
func Parse(t dom.Tree, root *html.Node) (*Thread, error) {
	node := dom.First(t, root, RoleThread)
	if node == nil {
		return nil, ErrNoThread
	}
	opNode := dom.First(t, node, RoleOP)
	if opNode == nil {
		return nil, fmt.Errorf("%w: missing original post", ErrNoThread)
	}
	op := readPost(t, opNode, true)
	if op.ID == "" {
		return nil, fmt.Errorf("%w: original post has no id", ErrNoThread)
	}
	bottom := dom.First(t, node, RoleBottom)
	if bottom == nil || bottom.Parent == nil {
		return nil, fmt.Errorf("%w: missing bottom anchor", ErrNoThread)
	}
	th := &Thread{
		Node:   node,
		OP:     op,
		Bottom: bottom,
		byID:   map[string]*Post{op.ID: op},
	}
	for _, n := range t.Query(node, RoleReply) {
		p := readPost(t, n, false)
		if p.ID == "" {
			continue
		}
		if _, dup := th.byID[p.ID]; dup {
			continue
		}
		th.byID[p.ID] = p
		th.Replies = append(th.Replies, p)
	}
	return th, nil
}

func readPost(t dom.Tree, n *html.Node, op bool) *Post {
	p := &Post{ID: dom.GetAttr(n, "id"), Node: n, OP: op}
	p.Info = dom.First(t, n, RoleInfo)
	scope := n
	if p.Info != nil {
		scope = p.Info
	}
	p.BackRefs = dom.First(t, scope, RoleBackRefs)
	return p
}

func tokenTexts(nodes []*html.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = dom.Text(n)
	}
	return out
}
