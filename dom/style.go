package dom

import (
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

func parseStyle(n *html.Node) []*cssast.Declaration {
	inline := strings.TrimSpace(GetAttr(n, "style"))
	if inline == "" {
		return nil
	}
	// The parser drops the value of an unterminated last declaration.
	if !strings.HasSuffix(inline, ";") {
		inline += ";"
	}
	decls, err := parser.ParseDeclarations(inline)
	if err != nil {
		return nil
	}
	out := decls[:0]
	for _, d := range decls {
		if d == nil || strings.TrimSpace(d.Property) == "" {
			continue
		}
		d.Property = strings.ToLower(strings.TrimSpace(d.Property))
		out = append(out, d)
	}
	return out
}

func formatStyle(decls []*cssast.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.Property + ": " + strings.TrimSpace(d.Value)
		if d.Important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}

// StyleProp returns the inline value of prop on n.
func StyleProp(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	val := ""
	for _, d := range parseStyle(n) {
		if d.Property == prop {
			val = strings.TrimSpace(d.Value)
		}
	}
	return val
}

// SetStyleProp sets one inline declaration, keeping the others.
func SetStyleProp(t Tree, n *html.Node, prop, val string) {
	if n == nil {
		return
	}
	prop = strings.ToLower(prop)
	decls := parseStyle(n)
	found := false
	for _, d := range decls {
		if d.Property == prop {
			d.Value = val
			found = true
		}
	}
	if !found {
		decls = append(decls, &cssast.Declaration{Property: prop, Value: val})
	}
	t.SetAttr(n, "style", formatStyle(decls))
}

// RemoveStyleProp drops one inline declaration. The style attribute is
// removed when nothing is left.
func RemoveStyleProp(t Tree, n *html.Node, prop string) {
	if n == nil {
		return
	}
	if _, ok := t.Attr(n, "style"); !ok {
		return
	}
	prop = strings.ToLower(prop)
	decls := parseStyle(n)
	out := decls[:0]
	for _, d := range decls {
		if d.Property != prop {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		t.RemoveAttr(n, "style")
		return
	}
	t.SetAttr(n, "style", formatStyle(out))
}

// Hidden reports whether n is hidden with an inline display: none.
func Hidden(n *html.Node) bool {
	return strings.EqualFold(StyleProp(n, "display"), "none")
}

// Hide sets display: none on n.
func Hide(t Tree, n *html.Node) { SetStyleProp(t, n, "display", "none") }

// Show clears the inline display property of n.
func Show(t Tree, n *html.Node) { RemoveStyleProp(t, n, "display") }
