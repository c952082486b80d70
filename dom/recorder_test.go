package dom

import "testing"

func TestRecorderSkipsNoopAttrWrites(t *testing.T) {
	doc := mustParse(t, fixture)
	rec := NewRecorder(doc)
	thumb := First(rec, doc.Root, "imgthumb")

	rec.SetAttr(thumb, "data-x", "1")
	rec.SetAttr(thumb, "data-x", "1")
	rec.RemoveAttr(thumb, "data-missing")
	if got := rec.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	m := rec.Mutations()[0]
	if m.Op != OpAttr || m.Name != "data-x" || m.Path != Path(thumb) {
		t.Fatalf("unexpected mutation %+v", m)
	}
}

func TestRecorderLimitAndHook(t *testing.T) {
	doc := mustParse(t, fixture)
	rec := NewRecorder(doc)
	rec.Limit = 2
	var seen int
	rec.OnMutation = func(Mutation) { seen++ }
	link := First(rec, doc.Root, "imglink")
	for i := 0; i < 5; i++ {
		span := rec.CreateElement("span")
		if err := rec.InsertBefore(link, span, nil); err != nil {
			t.Fatalf("InsertBefore: %v", err)
		}
	}
	if rec.Count() != 5 || seen != 5 {
		t.Fatalf("Count=%d seen=%d, want 5,5", rec.Count(), seen)
	}
	if got := len(rec.Mutations()); got != 2 {
		t.Fatalf("retained %d mutations, want 2", got)
	}
	rec.Reset()
	if rec.Count() != 0 || len(rec.Mutations()) != 0 {
		t.Fatalf("Reset did not clear")
	}
}

func TestRecorderForwardsPlayer(t *testing.T) {
	doc := mustParse(t, `<html><body><audio src="/a.ogg"></audio></body></html>`)
	rec := NewRecorder(doc)
	audio := doc.Root.FirstChild.LastChild.FirstChild
	if err := rec.Play(audio); err != nil {
		t.Fatalf("Play: %v", err)
	}
	rec.Pause(audio)
	rec.Pause(audio)
	rec.SetLoop(audio, true)
	var ops []Op
	for _, m := range rec.Mutations() {
		ops = append(ops, m.Op)
	}
	want := []Op{OpPlay, OpPause, OpLoop}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}
