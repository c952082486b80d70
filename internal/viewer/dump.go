package viewer

import (
	"log"
	"strconv"

	"threadview/dom"
)

const maxLoggedValue = 64

func logMutation(logger *log.Logger, m dom.Mutation) {
	if logger == nil {
		return
	}
	switch m.Op {
	case dom.OpAttr:
		logger.Printf("MUT %s %s %s=%s", m.Op, m.Path, m.Name, clip(m.Value, maxLoggedValue))
	case dom.OpAttrDel:
		logger.Printf("MUT %s %s %s", m.Op, m.Path, m.Name)
	default:
		logger.Printf("MUT %s %s <%s>", m.Op, m.Path, m.Tag)
	}
}

// clip shortens s to at most n bytes, noting how much was cut.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(" + strconv.Itoa(len(s)-n) + " more)"
}
