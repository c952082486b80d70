// Package media implements inline expansion of attached images, audio and
// video. Each attachment is a Slot driven through a small state machine by
// the Controller; every visual change goes through the swap protocol so that
// exactly one of the thumbnail and the expansion is visible at any time.
package media

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"threadview/dom"
	"threadview/eventloop"
)

// Role markers used by media slots.
const (
	RoleFile      dom.Role = "file"
	RoleLink      dom.Role = "imglink"
	RoleThumb     dom.Role = "imgthumb"
	RoleExpansion dom.Role = "imgexp"
	RoleEmbed     dom.Role = "embed"
	RoleMedia     dom.Role = "embedmedia"
	RoleLoop      dom.Role = "embedloop"
	RoleClose     dom.Role = "embedclose"
)

// Kind is the type of an attachment.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindAudio
	KindVideo
)

// ParseKind maps the data-type attribute of a link to a Kind.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return KindImage
	case "audio":
		return KindAudio
	case "video":
		return KindVideo
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// State is the expansion state of a slot.
type State int

const (
	Collapsed State = iota
	Loading
	Expanded
	// Failed is the expanded state reached when the resource could not be
	// loaded: the expansion is shown without dimensions.
	Failed
)

func (s State) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case Loading:
		return "loading"
	case Expanded:
		return "expanded"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Slot is one attachment on the page.
type Slot struct {
	Container *html.Node
	Link      *html.Node
	Thumb     *html.Node
	// Expansion is the expanded image, or the embed widget for audio and
	// video. It is created on first expansion and then reused.
	Expansion *html.Node
	Kind      Kind
	State     State
	Width     int
	Height    int
	Source    string

	media  *html.Node // native element inside the embed widget
	toggle *html.Node // loop toggle inside the embed widget

	res     Resource
	ready   bool
	failed  bool
	token   uint64
	timer   eventloop.Timer
	started time.Time
	delay   time.Duration
}

// Expanded reports whether the slot currently shows its expansion.
func (s *Slot) Expanded() bool {
	return s.State == Expanded || s.State == Failed
}

// Media returns the native audio/video element of an embed slot.
func (s *Slot) Media() *html.Node { return s.media }

// newSlot reads a slot from its link node. It returns nil for malformed
// markup: the thumbnail must be a direct child of the link, since the swap
// replaces it in place.
func newSlot(link *html.Node) *Slot {
	if link == nil {
		return nil
	}
	thumb := dom.ChildByRole(link, RoleThumb)
	if thumb == nil {
		return nil
	}
	s := &Slot{
		Link:   link,
		Thumb:  thumb,
		Kind:   ParseKind(dom.GetAttr(link, "data-type")),
		Source: strings.TrimSpace(dom.GetAttr(link, "href")),
	}
	s.Width, _ = dom.AttrInt(link, "data-width")
	s.Height, _ = dom.AttrInt(link, "data-height")
	if c := dom.Closest(link.Parent, RoleFile); c != nil {
		s.Container = c
	} else {
		s.Container = link.Parent
	}
	if exp := dom.ChildByRole(link, RoleExpansion); exp != nil {
		s.Expansion = exp
		s.ready = true
		if dom.Visible(rootOf(link), exp) {
			s.State = Expanded
		}
	}
	return s
}

func rootOf(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}
