package compose

import "testing"

func TestQuote(t *testing.T) {
	cases := []struct {
		ref, sel, want string
	}{
		{"123", "", ">>123\n"},
		{" 42 ", "hello", ">>42\n>hello\n"},
		{"7", "one\r\n\r\ntwo  \n", ">>7\n>one\n>two\n"},
	}
	for _, tc := range cases {
		if got := Quote(tc.ref, tc.sel); got != tc.want {
			t.Fatalf("Quote(%q, %q) = %q, want %q", tc.ref, tc.sel, got, tc.want)
		}
	}
}

func TestSplice(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		caret     int
		insert    string
		want      string
		wantCaret int
	}{
		{"empty", "", 0, ">>1\n", ">>1\n", 4},
		{"line start", "a\nb", 2, "X", "a\nXb", 3},
		{"mid line", "ab", 1, "X", "a\nXb", 3},
		{"past end", "ab", 99, "X", "ab\nX", 4},
		{"runes", "привет\n", 7, "X", "привет\nX", 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, caret := Splice(tc.text, tc.caret, tc.insert)
			if got != tc.want || caret != tc.wantCaret {
				t.Fatalf("Splice(%q, %d, %q) = %q, %d; want %q, %d", tc.text, tc.caret, tc.insert, got, caret, tc.want, tc.wantCaret)
			}
		})
	}
}

func TestFieldInsertKeepsCaret(t *testing.T) {
	f := &Field{}
	f.Insert("1", "")
	f.Insert("2", "quoted")
	want := ">>1\n>>2\n>quoted\n"
	if f.Text != want || f.Caret != len(want) {
		t.Fatalf("field = %q caret %d, want %q caret %d", f.Text, f.Caret, want, len(want))
	}
}
