// Package dom is the UI-tree capability consumed by the media controller and
// the thread reconciler. Nodes are golang.org/x/net/html nodes; navigation
// reads their fields directly while every mutation goes through a Tree so it
// can be recorded, replayed or checked.
package dom

import (
	"errors"

	"golang.org/x/net/html"
)

var (
	// ErrNilNode is returned when an operation receives a nil node.
	ErrNilNode = errors.New("dom: nil node")

	// ErrNotChild is returned when a reference node is not a child of the given parent.
	ErrNotChild = errors.New("dom: node is not a child of parent")

	// ErrCycle is returned when inserting a node would make it its own ancestor.
	ErrCycle = errors.New("dom: node is an ancestor of parent")
)

// Role is a marker on a node identifying which behaviour applies to it.
// Roles are stored as class tokens.
type Role string

// Tree mutates and queries a node tree.
type Tree interface {
	CreateElement(tag string) *html.Node
	CreateText(data string) *html.Node
	Attr(n *html.Node, key string) (string, bool)
	SetAttr(n *html.Node, key, val string)
	RemoveAttr(n *html.Node, key string)
	// InsertBefore inserts child into parent before ref, or appends when ref
	// is nil. A child that is already attached is moved.
	InsertBefore(parent, child, ref *html.Node) error
	RemoveChild(parent, child *html.Node) error
	// ReplaceChild puts newChild where oldChild was and detaches oldChild.
	ReplaceChild(parent, newChild, oldChild *html.Node) error
	// Query returns the descendants of root carrying role, in document order.
	Query(root *html.Node, role Role) []*html.Node
}

// Player controls native media playback on audio/video elements.
type Player interface {
	Play(n *html.Node) error
	Pause(n *html.Node)
	Paused(n *html.Node) bool
	SetLoop(n *html.Node, on bool)
	Looping(n *html.Node) bool
}

// Viewport reports and adjusts the scroll position and measures nodes.
type Viewport interface {
	ScrollTop() int
	SetScrollTop(y int)
	// Top returns the top edge of n relative to the viewport. ok is false
	// when n is not attached.
	Top(n *html.Node) (top int, ok bool)
}
