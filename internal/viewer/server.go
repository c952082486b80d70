package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/net/html"

	"threadview/dom"
	"threadview/media"
	"threadview/thread"
)

// Runner runs fn on the event loop and waits for it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Server exposes the live page over HTTP.
type Server struct {
	page    *Page
	loop    Runner
	mux     *http.ServeMux
	handler http.Handler
	logger  *log.Logger
}

// New wires a server for page. All page access goes through loop.
func New(page *Page, loop Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		page:   page,
		loop:   loop,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/click", s.handleClick)
	s.mux.HandleFunc("/refresh", s.handleRefresh)
	s.mux.HandleFunc("/scroll", s.handleScroll)
	s.mux.HandleFunc("/slots", s.handleSlots)
	s.mux.HandleFunc("/mutations", s.handleMutations)
	s.mux.HandleFunc("/reply", s.handleReply)
	s.mux.HandleFunc("/ping", s.handlePing)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	var rerr error
	if err := s.loop.Do(r.Context(), func() { rerr = s.page.Doc.Render(&buf) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if rerr != nil {
		http.Error(w, rerr.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

type clickResult struct {
	Suppressed bool   `json:"suppressed"`
	Slot       *slot  `json:"slot,omitempty"`
	Reply      string `json:"reply,omitempty"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	selection := r.URL.Query().Get("selection")
	var res clickResult
	var cerr error
	err := s.loop.Do(r.Context(), func() {
		var target *html.Node
		target, cerr = dom.Resolve(s.page.Doc.Root, path)
		if cerr != nil {
			return
		}
		res.Suppressed = s.page.Click(target, selection)
		if sl := s.page.Media.SlotFor(target); sl != nil {
			v := describeSlot(sl)
			res.Slot = &v
		}
		res.Reply = s.page.Reply.Text
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if cerr != nil {
		http.Error(w, cerr.Error(), http.StatusNotFound)
		return
	}
	s.logger.Printf("CLICK %s suppressed=%v", path, res.Suppressed)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	fresh, err := s.page.Fetcher.Fetch(r.Context())
	if err != nil {
		s.logger.Printf("FETCH failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	var st thread.Stats
	var rerr error
	if err := s.loop.Do(r.Context(), func() { st, rerr = s.page.Thread.Reconcile(fresh) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if rerr != nil {
		code := http.StatusInternalServerError
		if errors.Is(rerr, thread.ErrNoThread) || errors.Is(rerr, thread.ErrMismatch) {
			code = http.StatusBadGateway
		}
		http.Error(w, rerr.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	y, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		http.Error(w, "bad y", http.StatusBadRequest)
		return
	}
	var top int
	if err := s.loop.Do(r.Context(), func() {
		s.page.Layout.SetScrollTop(y)
		top = s.page.Layout.ScrollTop()
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"scroll_top": top})
}

type slot struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	State  string `json:"state"`
	Source string `json:"source"`
}

func describeSlot(s *media.Slot) slot {
	return slot{
		Path:   dom.Path(s.Link),
		Kind:   s.Kind.String(),
		State:  s.State.String(),
		Source: s.Source,
	}
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var out []slot
	if err := s.loop.Do(r.Context(), func() {
		for _, link := range s.page.Doc.Query(s.page.Doc.Root, media.RoleLink) {
			if sl := s.page.Media.SlotFor(link); sl != nil {
				out = append(out, describeSlot(sl))
			}
		}
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMutations(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     s.page.Recorder.Count(),
		"mutations": s.page.Recorder.Mutations(),
	})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var text string
	if err := s.loop.Do(r.Context(), func() { text = s.page.Reply.Text }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Connection", "close")
	io.WriteString(w, "pong\n")
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("REQ encode response: %v", err)
	}
}
