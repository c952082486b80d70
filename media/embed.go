package media

import (
	"strconv"

	"golang.org/x/net/html"

	"threadview/dom"
)

const toggleOnAttr = "data-on"

// buildEmbed creates the widget for an audio or video slot: the native
// element with controls, a loop toggle and a close affordance.
func (c *Controller) buildEmbed(s *Slot) *html.Node {
	w := c.tree.CreateElement("div")
	c.tree.SetAttr(w, "class", string(RoleEmbed))
	c.tree.SetAttr(w, "data-type", s.Kind.String())

	m := c.tree.CreateElement(s.Kind.String())
	c.tree.SetAttr(m, "class", string(RoleMedia))
	c.tree.SetAttr(m, "controls", "")
	c.tree.SetAttr(m, "src", s.Source)
	if s.Kind == KindVideo && s.Width > 0 && s.Height > 0 {
		c.tree.SetAttr(m, "width", strconv.Itoa(s.Width))
		c.tree.SetAttr(m, "height", strconv.Itoa(s.Height))
	}

	bar := c.tree.CreateElement("div")
	loop := c.affordance(RoleLoop, "[loop]")
	closer := c.affordance(RoleClose, "[close]")
	for _, step := range [][2]*html.Node{{w, m}, {w, bar}, {bar, loop}, {bar, closer}} {
		_ = c.tree.InsertBefore(step[0], step[1], nil)
	}
	s.media = m
	s.toggle = loop
	return w
}

func (c *Controller) affordance(role dom.Role, label string) *html.Node {
	a := c.tree.CreateElement("a")
	c.tree.SetAttr(a, "class", string(role))
	c.tree.SetAttr(a, "href", "#")
	_ = c.tree.InsertBefore(a, c.tree.CreateText(label), nil)
	return a
}

func (c *Controller) expandEmbed(s *Slot) {
	if s.Expansion == nil {
		s.Expansion = c.buildEmbed(s)
		c.widgets[s.Expansion] = s
	}
	if err := c.swap(s.Link.Parent, s.Link, s.Expansion, placeBefore); err != nil {
		c.logger.Printf("EXPAND %s: swap: %v", s.Source, err)
		return
	}
	s.State = Expanded
	if c.player != nil {
		if err := c.player.Play(s.media); err != nil {
			c.logger.Printf("EXPAND %s: play: %v", s.Source, err)
		}
	}
	c.logger.Printf("EXPAND %s (%s)", s.Source, s.Kind)
}

func (c *Controller) collapseEmbed(s *Slot) {
	if c.player != nil && s.media != nil {
		c.player.Pause(s.media)
	}
	w := s.Expansion
	if w == nil || w.Parent == nil {
		s.State = Collapsed
		return
	}
	if err := c.swap(w.Parent, w, s.Link, placeNone); err != nil {
		c.logger.Printf("COLLAPSE %s: swap: %v", s.Source, err)
		return
	}
	s.State = Collapsed
	c.compensateScroll(s)
	c.logger.Printf("COLLAPSE %s", s.Source)
}

// TogglePlayback plays a paused embed and pauses a playing one.
func (c *Controller) TogglePlayback(s *Slot) {
	if s == nil || s.media == nil || c.player == nil || !s.Expanded() {
		return
	}
	if c.player.Paused(s.media) {
		if err := c.player.Play(s.media); err != nil {
			c.logger.Printf("CLICK %s: play: %v", s.Source, err)
		}
		return
	}
	c.player.Pause(s.media)
}

// ToggleLoop flips looping of an embed and reflects it on the toggle.
func (c *Controller) ToggleLoop(s *Slot) {
	if s == nil || s.media == nil || c.player == nil {
		return
	}
	on := !c.player.Looping(s.media)
	c.player.SetLoop(s.media, on)
	if on {
		c.tree.SetAttr(s.toggle, toggleOnAttr, "1")
	} else {
		c.tree.RemoveAttr(s.toggle, toggleOnAttr)
	}
}
