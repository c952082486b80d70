package thread

// DiffBackRefs compares a live back-reference list with the fresh one using
// the longest common prefix: the live list keeps its first keep tokens and
// gets add appended. Identical lists give keep == len(existing) and no add.
func DiffBackRefs(existing, fresh []string) (keep int, add []string) {
	for keep < len(existing) && keep < len(fresh) && existing[keep] == fresh[keep] {
		keep++
	}
	if keep < len(fresh) {
		add = fresh[keep:]
	}
	return keep, add
}

// MergeBackRefs returns the list existing converges to.
func MergeBackRefs(existing, fresh []string) []string {
	keep, add := DiffBackRefs(existing, fresh)
	out := make([]string, 0, keep+len(add))
	out = append(out, existing[:keep]...)
	return append(out, add...)
}

// Reference is a post reference written in a post body.
type Reference struct {
	Board  string
	Thread string
	Post   string
}

// PostRefs is a post identity with the references it makes.
type PostRefs struct {
	ID         string
	References []Reference
}

// BackReferences computes the back-reference list of every post of a
// thread from the references the posts make, in post order. posts[0] is
// the original post. References to other boards or threads are ignored, as
// are self references and a post referencing the same target twice in a
// row.
func BackReferences(board, threadID string, posts []PostRefs) map[string][]string {
	out := make(map[string][]string, len(posts))
	known := make(map[string]bool, len(posts))
	for _, p := range posts {
		known[p.ID] = true
	}
	for _, p := range posts {
		for _, ref := range p.References {
			if ref.Board != "" && ref.Board != board {
				continue
			}
			if ref.Thread != "" && ref.Thread != threadID {
				continue
			}
			if ref.Post == "" || ref.Post == p.ID || !known[ref.Post] {
				continue
			}
			list := out[ref.Post]
			if len(list) > 0 && list[len(list)-1] == p.ID {
				continue
			}
			out[ref.Post] = append(list, p.ID)
		}
	}
	return out
}
