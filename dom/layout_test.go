package dom

import "testing"

func TestLayoutTop(t *testing.T) {
	doc := mustParse(t, `<html><head><title>t</title></head><body><p>line</p><img id="big" height="100"><div id="x">hi</div></body></html>`)
	body := doc.Root.FirstChild.LastChild
	img := body.FirstChild.NextSibling
	div := body.LastChild
	l := NewLayout(doc.Root)

	if top, ok := l.Top(div); !ok || top != 118 {
		t.Fatalf("Top(div) = %d,%v, want 118,true", top, ok)
	}
	Hide(doc, img)
	if top, _ := l.Top(div); top != 18 {
		t.Fatalf("Top(div) with hidden img = %d, want 18", top)
	}
	Show(doc, img)
	l.SetScrollTop(50)
	if top, _ := l.Top(div); top != 68 {
		t.Fatalf("Top(div) scrolled = %d, want 68", top)
	}
	if _, ok := l.Top(doc.CreateElement("p")); ok {
		t.Fatalf("Top(detached) should not be ok")
	}
	l.SetScrollTop(-5)
	if l.ScrollTop() != 0 {
		t.Fatalf("negative scroll not clamped: %d", l.ScrollTop())
	}
}
