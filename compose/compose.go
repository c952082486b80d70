// Package compose formats reply quotes and splices them into the reply
// field.
package compose

import (
	"strings"
	"unicode/utf8"
)

// Quote returns the text inserted when reference number ref is clicked: a
// reference line followed by the selected text, one quoted line per
// non-blank selected line.
func Quote(ref, selection string) string {
	var b strings.Builder
	b.WriteString(">>")
	b.WriteString(strings.TrimSpace(ref))
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.ReplaceAll(selection, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteByte('>')
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Splice inserts insert into text at caret, a rune offset clamped to the
// text, and returns the result with the caret placed after the insertion.
// Insertion in the middle of a line starts on a new line.
func Splice(text string, caret int, insert string) (string, int) {
	runes := utf8.RuneCountInString(text)
	if caret < 0 || caret > runes {
		caret = runes
	}
	at := byteOffset(text, caret)
	head, tail := text[:at], text[at:]
	if head != "" && !strings.HasSuffix(head, "\n") {
		insert = "\n" + insert
	}
	return head + insert + tail, caret + utf8.RuneCountInString(insert)
}

func byteOffset(s string, runes int) int {
	i := 0
	for off := range s {
		if i == runes {
			return off
		}
		i++
	}
	return len(s)
}

// Field is a reply text field with a caret.
type Field struct {
	Text  string
	Caret int
}

// Insert splices a quote of ref and selection at the caret.
func (f *Field) Insert(ref, selection string) {
	f.Text, f.Caret = Splice(f.Text, f.Caret, Quote(ref, selection))
}
