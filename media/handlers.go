package media

import (
	"threadview/dispatch"
)

// Register installs the click handlers of the media roles.
func (c *Controller) Register(reg *dispatch.Registry) {
	reg.HandleFunc(RoleThumb, c.clickThumb)
	reg.HandleFunc(RoleExpansion, c.clickExpansion)
	reg.HandleFunc(RoleLink, c.clickLink)
	reg.HandleFunc(RoleClose, c.clickClose)
	reg.HandleFunc(RoleEmbed, c.clickEmbed)
	reg.HandleFunc(RoleLoop, c.clickLoop)
}

// clickThumb expands supported kinds. Anything else follows the link.
func (c *Controller) clickThumb(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil || s.Kind == KindUnknown {
		return false
	}
	c.Expand(s)
	return true
}

func (c *Controller) clickExpansion(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil {
		return false
	}
	c.Collapse(s)
	return true
}

// clickLink handles clicks that land on the wrapper itself, for instance on
// padding around the thumbnail.
func (c *Controller) clickLink(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil || s.Kind == KindUnknown {
		return false
	}
	switch s.State {
	case Collapsed:
		c.Expand(s)
	case Loading:
	default:
		c.Collapse(s)
	}
	return true
}

func (c *Controller) clickClose(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil {
		return false
	}
	c.Collapse(s)
	return true
}

func (c *Controller) clickEmbed(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil {
		return false
	}
	c.TogglePlayback(s)
	return true
}

func (c *Controller) clickLoop(ev dispatch.Event) bool {
	s := c.SlotFor(ev.Target)
	if s == nil {
		return false
	}
	c.ToggleLoop(s)
	return true
}
