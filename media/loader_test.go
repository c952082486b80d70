package media

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func waitSettled(t *testing.T, r Resource) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, _, ok := r.Size(); ok || r.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resource never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHTTPLoaderReadsDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 7, 3))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/src/a.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(buf.Bytes())
		case "/src/text.png":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.Client(), srv.URL+"/t/1")
	cases := []struct {
		src    string
		w, h   int
		failed bool
	}{
		{"/src/a.png", 7, 3, false},
		{srv.URL + "/src/a.png", 7, 3, false},
		{"/src/missing.png", 0, 0, true},
		{"/src/text.png", 0, 0, true},
		{"%zz", 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			r := l.Load(tc.src)
			waitSettled(t, r)
			if tc.failed {
				if r.Err() == nil {
					t.Fatalf("Load(%q) did not fail", tc.src)
				}
				return
			}
			w, h, ok := r.Size()
			if r.Err() != nil || !ok || w != tc.w || h != tc.h {
				t.Fatalf("Load(%q) = %dx%d ok=%v err=%v", tc.src, w, h, ok, r.Err())
			}
		})
	}
	if got := l.Fetches(); got != 4 {
		t.Fatalf("Fetches = %d, want 4", got)
	}
}
