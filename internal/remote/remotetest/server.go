// Package remotetest provides an in-process coordination server for tests.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/ungeskriptet/samsung-grab/internal/domain"
)

// NoTasksMessage is returned by get_task once the queue is empty.
const NoTasksMessage = "no tasks available"

// Server hands out queued tasks and records uploads. Exported fields may be
// changed between requests; they are read under the server's lock.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Queue          []domain.Task
	ClaimResponse  map[string]any // overrides get_task replies when set
	BeginError     string
	PutStatus      int
	CompleteStatus string
	CompleteError  string
	StatsPage      string

	Claims    []string
	Declared  map[string]int64
	Uploaded  map[string][]byte
	Completed []string
}

func NewServer(queue ...domain.Task) *Server {
	s := &Server{
		Queue:          queue,
		PutStatus:      http.StatusOK,
		CompleteStatus: domain.StatusOK,
		StatsPage:      DefaultStatsPage,
		Declared:       make(map[string]int64),
		Uploaded:       make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /get_task", s.getTask)
	mux.HandleFunc("POST /begin_upload", s.beginUpload)
	mux.HandleFunc("PUT /upload/{id}", s.put)
	mux.HandleFunc("POST /complete_upload", s.completeUpload)
	mux.HandleFunc("GET /stats", s.stats)
	s.Server = httptest.NewServer(mux)
	return s
}

// Lock exposes the server lock for tests that read recorded fields while
// requests may still be in flight.
func (s *Server) Lock()   { s.mu.Lock() }
func (s *Server) Unlock() { s.mu.Unlock() }

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Claims = append(s.Claims, r.FormValue("username"))
	if s.ClaimResponse != nil {
		writeJSON(w, s.ClaimResponse)
		return
	}
	if len(s.Queue) == 0 {
		writeJSON(w, map[string]string{"error": NoTasksMessage})
		return
	}
	t := s.Queue[0]
	s.Queue = s.Queue[1:]
	writeJSON(w, t)
}

func (s *Server) beginUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BeginError != "" {
		writeJSON(w, map[string]string{"error": s.BeginError})
		return
	}
	id := r.PostFormValue("task_id")
	size, err := strconv.ParseInt(r.PostFormValue("file_size"), 10, 64)
	if id == "" || err != nil {
		writeJSON(w, map[string]string{"error": "bad request"})
		return
	}
	s.Declared[id] = size
	writeJSON(w, map[string]string{"uploadURL": s.URL + "/upload/" + id})
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if size, ok := s.Declared[id]; !ok || size != int64(len(data)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.PutStatus == http.StatusOK {
		s.Uploaded[id] = data
	}
	w.WriteHeader(s.PutStatus)
}

func (s *Server) completeUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CompleteError != "" {
		writeJSON(w, map[string]string{"error": s.CompleteError})
		return
	}
	s.Completed = append(s.Completed, r.PostFormValue("task_id"))
	writeJSON(w, map[string]string{"status": s.CompleteStatus})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	page := s.StatsPage
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, page)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// DefaultStatsPage is a minimal statistics page in the server's layout.
const DefaultStatsPage = `<!DOCTYPE html>
<html><body>
<h1>Stats</h1>
<table id="counts">
<tr><td>120</td><td>60.0%</td><th>pending</th></tr>
<tr><td>40</td><td>20.0%</td><th>claimed</th></tr>
<tr><td>10</td><td>5.0%</td><th>uploading</th></tr>
<tr><td>30</td><td>15.0%</td><th>done</th></tr>
</table>
</body></html>`
