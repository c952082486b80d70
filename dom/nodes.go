package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// GetAttr returns the attribute value or "".
func GetAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

// AttrInt parses a numeric attribute. ok is false when it is missing or not a
// positive integer.
func AttrInt(n *html.Node, key string) (int, bool) {
	v := strings.TrimSpace(GetAttr(n, key))
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}

// Roles returns the role markers carried by n.
func Roles(n *html.Node) []Role {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	fields := strings.Fields(GetAttr(n, "class"))
	out := make([]Role, 0, len(fields))
	for _, f := range fields {
		out = append(out, Role(f))
	}
	return out
}

// HasRole reports whether n carries role.
func HasRole(n *html.Node, role Role) bool {
	for _, r := range Roles(n) {
		if r == role {
			return true
		}
	}
	return false
}

// Closest returns n or its nearest ancestor carrying role.
func Closest(n *html.Node, role Role) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if HasRole(p, role) {
			return p
		}
	}
	return nil
}

// ChildByRole returns the first direct child of n carrying role.
func ChildByRole(n *html.Node, role Role) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if HasRole(c, role) {
			return c
		}
	}
	return nil
}

// First returns the first descendant of root carrying role.
func First(t Tree, root *html.Node, role Role) *html.Node {
	if nodes := t.Query(root, role); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// Text returns the concatenated, whitespace-condensed text of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Attached reports whether n is connected to root.
func Attached(root, n *html.Node) bool {
	if root == nil || n == nil {
		return false
	}
	return isAncestor(root, n)
}

// Visible reports whether n is attached to root and neither n nor any of its
// ancestors is hidden.
func Visible(root, n *html.Node) bool {
	if !Attached(root, n) {
		return false
	}
	for p := n; p != nil && p != root; p = p.Parent {
		if Hidden(p) {
			return false
		}
	}
	return true
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(Clone(ch))
	}
	return c
}
