package dispatch

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"threadview/dom"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func TestDispatchRoutesByOwnRole(t *testing.T) {
	doc := parse(t, `<html><body><a class="imglink"><img class="imgthumb"></a><span class="other"></span></body></html>`)
	reg := NewRegistry(nil)
	var calls []dom.Role
	reg.HandleFunc("imgthumb", func(ev Event) bool {
		calls = append(calls, ev.Role)
		return true
	})
	reg.HandleFunc("imglink", func(ev Event) bool {
		calls = append(calls, ev.Role)
		return false
	})

	thumb := dom.First(doc, doc.Root, "imgthumb")
	link := dom.First(doc, doc.Root, "imglink")
	other := dom.First(doc, doc.Root, "other")

	cases := []struct {
		name       string
		target     *html.Node
		suppressed bool
		calls      int
	}{
		{"thumb", thumb, true, 1},
		{"link", link, false, 2},
		{"unknown", other, false, 2},
		{"body", doc.Root.FirstChild.LastChild, false, 2},
	}
	for _, tc := range cases {
		got := reg.Dispatch(tc.target)
		if got != tc.suppressed {
			t.Fatalf("%s: Dispatch = %v, want %v", tc.name, got, tc.suppressed)
		}
		if len(calls) != tc.calls {
			t.Fatalf("%s: %d handler calls, want %d", tc.name, len(calls), tc.calls)
		}
	}
	if calls[0] != "imgthumb" || calls[1] != "imglink" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	doc := parse(t, `<html><body><a class="boom"></a><a class="ok"></a></body></html>`)
	var buf bytes.Buffer
	reg := NewRegistry(log.New(&buf, "", 0))
	reg.HandleFunc("boom", func(Event) bool { panic("malformed") })
	reg.HandleFunc("ok", func(Event) bool { return true })

	if reg.Dispatch(dom.First(doc, doc.Root, "boom")) {
		t.Fatalf("panicking handler reported suppression")
	}
	if !strings.Contains(buf.String(), "malformed") {
		t.Fatalf("panic not logged: %q", buf.String())
	}
	if !reg.Dispatch(dom.First(doc, doc.Root, "ok")) {
		t.Fatalf("dispatcher stopped working after a panic")
	}
	if reg.Roles() != 2 {
		t.Fatalf("Roles = %d, want 2", reg.Roles())
	}
}
