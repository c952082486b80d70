package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultLineHeight = 18

// Layout is a Viewport over a node tree using a stacked-box model: every
// visible box sits below the previous one. Boxes with a height attribute
// (images, media) take that height, non-blank text takes one line, other
// elements take the sum of their children.
type Layout struct {
	Root       *html.Node
	LineHeight int

	scroll int
}

// NewLayout returns a Layout over root scrolled to the top.
func NewLayout(root *html.Node) *Layout {
	return &Layout{Root: root, LineHeight: defaultLineHeight}
}

func (l *Layout) ScrollTop() int { return l.scroll }

func (l *Layout) SetScrollTop(y int) {
	if y < 0 {
		y = 0
	}
	l.scroll = y
}

func (l *Layout) Top(n *html.Node) (int, bool) {
	if !Attached(l.Root, n) {
		return 0, false
	}
	y, found := l.offset(l.Root, n, 0)
	if !found {
		return 0, false
	}
	return y - l.scroll, true
}

// Height returns the laid out height of n.
func (l *Layout) Height(n *html.Node) int {
	if n == nil {
		return 0
	}
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return 0
		}
		return l.lineHeight()
	case html.ElementNode:
		if Hidden(n) || invisibleTag(n) {
			return 0
		}
		if h, ok := AttrInt(n, "height"); ok {
			return h
		}
	case html.CommentNode, html.DoctypeNode:
		return 0
	}
	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += l.Height(c)
	}
	return total
}

// offset walks cur in document order starting at y and returns the document
// offset of target.
func (l *Layout) offset(cur, target *html.Node, y int) (int, bool) {
	if cur == target {
		return y, true
	}
	if cur.Type == html.ElementNode && (Hidden(cur) || invisibleTag(cur)) {
		return y, false
	}
	for c := cur.FirstChild; c != nil; c = c.NextSibling {
		if isAncestor(c, target) {
			return l.offset(c, target, y)
		}
		y += l.Height(c)
	}
	return y, false
}

func (l *Layout) lineHeight() int {
	if l.LineHeight > 0 {
		return l.LineHeight
	}
	return defaultLineHeight
}

func invisibleTag(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title, atom.Template:
		return true
	}
	return false
}
