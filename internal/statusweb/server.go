// Package statusweb exposes a running rdbscan decode's progress over
// HTTP: a JSON status endpoint and a small human-readable page.
package statusweb

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"net"
	"net/http"

	"github.com/congmo/rdbscan/internal/state"
)

// Server exposes state.Store snapshots over HTTP.
type Server struct {
	addr  string
	store *state.Store
	tmpl  *template.Template
}

// Options configure Server.
type Options struct {
	Addr  string
	Store *state.Store
}

// New builds a Server from opts.
func New(opts Options) (*Server, error) {
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse status page template: %w", err)
	}
	return &Server{addr: opts.Addr, store: opts.Store, tmpl: tmpl}, nil
}

// allocatePort tries addr first, falling back to a random port in
// 20000-30000 if it's unavailable.
func allocatePort(preferredAddr string, maxRetries int) (net.Listener, string, error) {
	const portRangeMin, portRangeMax = 20000, 30000

	if preferredAddr != "" && preferredAddr != ":0" {
		if ln, err := net.Listen("tcp", preferredAddr); err == nil {
			return ln, ln.Addr().String(), nil
		}
		log.Printf("rdbscan statusweb: preferred addr %s unavailable, picking a random port", preferredAddr)
	}

	for i := 0; i < maxRetries; i++ {
		addr := fmt.Sprintf(":%d", portRangeMin+rand.Intn(portRangeMax-portRangeMin+1))
		if ln, err := net.Listen("tcp", addr); err == nil {
			return ln, ln.Addr().String(), nil
		}
	}
	return nil, "", fmt.Errorf("failed to allocate a status server port after %d attempts", maxRetries)
}

// Start binds a listener and serves until the process exits or the
// listener errors. When ready is non-nil it receives the bound address.
func (s *Server) Start(ready chan<- string) error {
	if s.addr == "" {
		s.addr = ":0"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)

	ln, actualAddr, err := allocatePort(s.addr, 10)
	if err != nil {
		return err
	}
	s.addr = actualAddr
	if ready != nil {
		ready <- actualAddr
	}
	log.Printf("rdbscan statusweb: listening at http://%s", actualAddr)

	return http.Serve(ln, mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.tmpl.Execute(w, snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>rdbscan status</title></head>
<body>
<h1>rdbscan</h1>
<table border="1" cellpadding="4">
<tr><td>status</td><td>{{.Status}}</td></tr>
<tr><td>source</td><td>{{.SourceFile}}</td></tr>
<tr><td>current db</td><td>{{.CurrentDB}}</td></tr>
<tr><td>keys scanned</td><td>{{.KeysScanned}}</td></tr>
<tr><td>keys skipped</td><td>{{.KeysSkipped}}</td></tr>
<tr><td>last key</td><td>{{.LastKey}}</td></tr>
<tr><td>last error</td><td>{{.LastError}}</td></tr>
<tr><td>updated at</td><td>{{.UpdatedAt}}</td></tr>
</table>
<h2>type counts</h2>
<table border="1" cellpadding="4">
{{range $type, $count := .TypeCounts}}<tr><td>{{$type}}</td><td>{{$count}}</td></tr>
{{end}}
</table>
</body>
</html>
`
