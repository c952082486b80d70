package thread

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyReply is returned when sanitizing removes the whole reply.
var ErrEmptyReply = errors.New("thread: reply is empty after sanitizing")

// PolicySanitizer runs reply markup through a bluemonday policy.
type PolicySanitizer struct {
	Policy *bluemonday.Policy
}

// NewPolicySanitizer returns a sanitizer based on the user generated content
// policy that keeps the markers and data attributes the page relies on.
func NewPolicySanitizer() *PolicySanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("height", "width").OnElements("img", "div")
	p.AllowElements("div", "span", "a", "img", "blockquote", "br")
	return &PolicySanitizer{Policy: p}
}

func (s *PolicySanitizer) Sanitize(n *html.Node) (*html.Node, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return nil, fmt.Errorf("render reply: %w", err)
	}
	clean := s.Policy.SanitizeBytes(buf.Bytes())
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(bytes.NewReader(clean), context)
	if err != nil {
		return nil, fmt.Errorf("parse sanitized reply: %w", err)
	}
	for _, c := range nodes {
		if c.Type == html.ElementNode {
			return c, nil
		}
	}
	return nil, ErrEmptyReply
}
