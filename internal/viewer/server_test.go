package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"threadview/dom"
	"threadview/eventloop"
	"threadview/media"
	"threadview/thread"
)

const livePage = `<html><body><div class="thread" id="t1">` +
	`<div class="op" id="1"><div class="postinfo"><a class="postnum">1</a><span class="backrefs"></span></div>` +
	`<div class="file"><a class="imglink" data-type="image" data-width="40" data-height="30" href="/src/a.png"><img class="imgthumb" height="10" src="/thm/a.png"></a></div>` +
	`<blockquote>hello</blockquote></div>` +
	`<a class="threadupdate" href="/t/1">[update]</a><div class="bottom"></div></div></body></html>`

const freshPage = `<html><body><div class="thread" id="t1">` +
	`<div class="op" id="1"><div class="postinfo"><a class="postnum">1</a><span class="backrefs"><a class="bref">2</a></span></div>` +
	`<div class="file"><a class="imglink" data-type="image" data-width="40" data-height="30" href="/src/a.png"><img class="imgthumb" height="10" src="/thm/a.png"></a></div>` +
	`<blockquote>hello</blockquote></div>` +
	`<div class="reply" id="2"><div class="postinfo"><a class="postnum">2</a></div>` +
	`<div class="file"><a class="imglink" data-type="video" href="/src/b.webm"><img class="imgthumb" src="/thm/b.png"></a></div></div>` +
	`<a class="threadupdate" href="/t/1">[update]</a><div class="bottom"></div></div></body></html>`

type readyResource struct{}

func (readyResource) Size() (int, int, bool) { return 40, 30, true }
func (readyResource) Err() error              { return nil }

type testEnv struct {
	page *Page
	srv  *httptest.Server
	doc  *dom.Document
}

func newTestEnv(t *testing.T, fetcher thread.Fetcher) *testEnv {
	t.Helper()
	doc, err := dom.ParseString(livePage)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	cfg := DefaultConfig()
	cfg.Logger = logger
	cfg.LogMutation = true

	ctx, cancel := context.WithCancel(context.Background())
	loop := eventloop.New(logger)
	go loop.Run(ctx)

	loader := media.LoaderFunc(func(string) media.Resource { return readyResource{} })
	page := NewPage(cfg, doc, fetcher, loader, loop)
	srv := httptest.NewServer(New(page, loop, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testEnv{page: page, srv: srv, doc: doc}
}

func (e *testEnv) post(t *testing.T, path string, query url.Values) (*http.Response, []byte) {
	t.Helper()
	u := e.srv.URL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := http.Post(u, "text/plain", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func (e *testEnv) slots(t *testing.T) []slot {
	t.Helper()
	resp, err := http.Get(e.srv.URL + "/slots")
	if err != nil {
		t.Fatalf("GET /slots: %v", err)
	}
	defer resp.Body.Close()
	var out []slot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	return out
}

func staticFetcher(src string) thread.Fetcher {
	return thread.FetcherFunc(func(context.Context) (*html.Node, error) {
		return html.Parse(strings.NewReader(src))
	})
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, staticFetcher(livePage))
	resp, err := http.Get(env.srv.URL + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "pong\n" {
		t.Fatalf("ping = %d %q", resp.StatusCode, body)
	}
}

func TestClickExpandsImage(t *testing.T) {
	env := newTestEnv(t, staticFetcher(livePage))
	thumb := dom.Path(dom.First(env.doc, env.doc.Root, media.RoleThumb))

	resp, body := env.post(t, "/click", url.Values{"path": {thumb}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("click = %d %s", resp.StatusCode, body)
	}
	var res clickResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode click: %v", err)
	}
	if !res.Suppressed || res.Slot == nil || res.Slot.State != "loading" {
		t.Fatalf("click result = %s", body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		s := env.slots(t)
		if len(s) == 1 && s[0].State == "expanded" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot never expanded: %+v", s)
		}
		time.Sleep(10 * time.Millisecond)
	}

	page, err := http.Get(env.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer page.Body.Close()
	rendered, _ := io.ReadAll(page.Body)
	if !bytes.Contains(rendered, []byte(`class="imgexp"`)) {
		t.Fatalf("rendered page has no expansion")
	}
}

func TestClickErrors(t *testing.T) {
	env := newTestEnv(t, staticFetcher(livePage))
	cases := []struct {
		name  string
		query url.Values
		want  int
	}{
		{"missing path", nil, http.StatusBadRequest},
		{"bad path", url.Values{"path": {"/html[1]/body[1]/table[4]"}}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.post(t, "/click", tc.query)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d (%s), want %d", resp.StatusCode, body, tc.want)
			}
		})
	}
	resp, err := http.Get(env.srv.URL + "/click?path=/html[1]")
	if err != nil {
		t.Fatalf("GET /click: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /click = %d, want 405", resp.StatusCode)
	}
}

func TestRefreshMergesThread(t *testing.T) {
	env := newTestEnv(t, staticFetcher(freshPage))

	resp, body := env.post(t, "/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh = %d %s", resp.StatusCode, body)
	}
	var st thread.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Inserted != 1 || st.Appended != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if got := env.slots(t); len(got) != 2 || got[1].Kind != "video" {
		t.Fatalf("slots after refresh = %+v", got)
	}

	count := env.page.Recorder.Count()
	resp, body = env.post(t, "/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second refresh = %d %s", resp.StatusCode, body)
	}
	if env.page.Recorder.Count() != count {
		t.Fatalf("second refresh mutated the page")
	}
}

func TestRefreshFailures(t *testing.T) {
	cases := []struct {
		name    string
		fetcher thread.Fetcher
	}{
		{"fetch error", thread.FetcherFunc(func(context.Context) (*html.Node, error) {
			return nil, errors.New("connection refused")
		})},
		{"not a thread", staticFetcher(`<html><body>captcha</body></html>`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.fetcher)
			before := env.doc.String()
			resp, body := env.post(t, "/refresh", nil)
			if resp.StatusCode != http.StatusBadGateway {
				t.Fatalf("refresh = %d %s, want 502", resp.StatusCode, body)
			}
			if env.page.Recorder.Count() != 0 {
				t.Fatalf("failed refresh recorded %d mutations", env.page.Recorder.Count())
			}
			resp2, _ := http.Get(env.srv.URL + "/")
			after, _ := io.ReadAll(resp2.Body)
			resp2.Body.Close()
			if string(after) != before {
				t.Fatalf("page changed after failed refresh")
			}
		})
	}
}

func TestQuoteIntoReply(t *testing.T) {
	env := newTestEnv(t, staticFetcher(livePage))
	num := dom.Path(dom.First(env.doc, env.doc.Root, RolePostNum))

	resp, body := env.post(t, "/click", url.Values{"path": {num}, "selection": {"hello"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("click = %d %s", resp.StatusCode, body)
	}
	reply, err := http.Get(env.srv.URL + "/reply")
	if err != nil {
		t.Fatalf("GET /reply: %v", err)
	}
	defer reply.Body.Close()
	text, _ := io.ReadAll(reply.Body)
	if string(text) != ">>1\n>hello\n" {
		t.Fatalf("reply = %q", text)
	}
}

func TestScrollAndMutations(t *testing.T) {
	env := newTestEnv(t, staticFetcher(livePage))
	resp, body := env.post(t, "/scroll", url.Values{"y": {"-5"}})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"scroll_top":0`) {
		t.Fatalf("scroll = %d %s", resp.StatusCode, body)
	}
	if resp, _ := env.post(t, "/scroll", url.Values{"y": {"up"}}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad scroll = %d, want 400", resp.StatusCode)
	}

	thumb := dom.Path(dom.First(env.doc, env.doc.Root, media.RoleThumb))
	env.post(t, "/click", url.Values{"path": {thumb}})
	mresp, err := http.Get(env.srv.URL + "/mutations")
	if err != nil {
		t.Fatalf("GET /mutations: %v", err)
	}
	defer mresp.Body.Close()
	var out struct {
		Count     int            `json:"count"`
		Mutations []dom.Mutation `json:"mutations"`
	}
	if err := json.NewDecoder(mresp.Body).Decode(&out); err != nil {
		t.Fatalf("decode mutations: %v", err)
	}
	if out.Count == 0 || len(out.Mutations) != out.Count {
		t.Fatalf("mutations = %d listed, count %d", len(out.Mutations), out.Count)
	}
}
