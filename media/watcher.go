package media

import "time"

// schedulePoll arms the readiness watcher of s with a fresh token. Any poll
// already in flight carries an older token and becomes a no-op.
func (c *Controller) schedulePoll(s *Slot) {
	c.tokens++
	token := c.tokens
	s.token = token
	s.timer = c.sched.After(s.delay, func() { c.poll(s, token) })
}

// cancel clears the pending token of s and stops its timer.
func (c *Controller) cancel(s *Slot) {
	s.token = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (c *Controller) poll(s *Slot, token uint64) {
	if s.State != Loading || s.token != token {
		return
	}
	s.timer = nil
	if err := s.res.Err(); err != nil {
		c.fail(s, err)
		return
	}
	if w, h, ok := s.res.Size(); ok && w > 0 && h > 0 {
		s.ready = true
		c.finish(s, true)
		return
	}
	if c.cfg.LoadTimeout > 0 && c.sched.Now().Sub(s.started) >= c.cfg.LoadTimeout {
		c.fail(s, ErrLoadTimeout)
		return
	}
	next := time.Duration(float64(s.delay) * c.cfg.PollBackoff)
	if next > c.cfg.MaxPollInterval {
		next = c.cfg.MaxPollInterval
	}
	s.delay = next
	c.schedulePoll(s)
}
