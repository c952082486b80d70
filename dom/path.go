package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Path returns an XPath-like address of n such as /html[1]/body[1]/div[2].
// Text nodes are addressed as text()[k]. Detached nodes get a path relative
// to their topmost ancestor.
func Path(n *html.Node) string {
	if n == nil {
		return ""
	}
	var segs []string
	for c := n; c != nil && c.Type != html.DocumentNode; c = c.Parent {
		switch c.Type {
		case html.ElementNode:
			segs = append(segs, fmt.Sprintf("%s[%d]", c.Data, siblingIndex(c)))
		case html.TextNode:
			segs = append(segs, fmt.Sprintf("text()[%d]", siblingIndex(c)))
		default:
			segs = append(segs, "node()")
		}
	}
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

func siblingIndex(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if sameKind(s, n) {
			idx++
		}
	}
	return idx
}

func sameKind(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.Data == b.Data
	}
	return true
}

// Resolve finds the node addressed by path below root. Index suffixes are
// optional and default to 1.
func Resolve(root *html.Node, path string) (*html.Node, error) {
	if root == nil {
		return nil, ErrNilNode
	}
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return root, nil
	}
	cur := root
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		name, idx, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}
		next := nthChild(cur, name, idx)
		if next == nil {
			return nil, fmt.Errorf("resolve %q: no %s[%d] under %s", path, name, idx, Path(cur))
		}
		cur = next
	}
	return cur, nil
}

func parseSegment(seg string) (string, int, error) {
	name := seg
	idx := 1
	if open := strings.IndexByte(seg, '['); open != -1 {
		if !strings.HasSuffix(seg, "]") {
			return "", 0, fmt.Errorf("resolve: bad segment %q", seg)
		}
		n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
		if err != nil || n < 1 {
			return "", 0, fmt.Errorf("resolve: bad index in %q", seg)
		}
		name, idx = seg[:open], n
	}
	if name == "" {
		return "", 0, fmt.Errorf("resolve: empty segment")
	}
	return strings.ToLower(name), idx, nil
}

func nthChild(n *html.Node, name string, idx int) *html.Node {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		match := false
		switch {
		case name == "text()":
			match = c.Type == html.TextNode
		case c.Type == html.ElementNode:
			match = c.Data == name
		}
		if !match {
			continue
		}
		count++
		if count == idx {
			return c
		}
	}
	return nil
}
