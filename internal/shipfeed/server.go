// Package shipfeed is the external ShipmentFeed HTTP collaborator: a
// trivial in-memory REST service with a debug dashboard, presenting the
// bit-exact interface of §6. The core mediator only ever talks to it
// through the ShipmentQuerier facade; this package is its standalone
// server implementation.
package shipfeed

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// Server is the shipment feed's in-memory store plus its HTTP surface,
// grounded on this codebase's mux-router-plus-CORS-middleware API server
// shape.
type Server struct {
	mu       sync.RWMutex
	byID     map[string]domain.ShipmentDetail
	autoAdd  atomic.Bool
	router   *mux.Router
	dashboard *template.Template
}

// New builds a Server with an empty shipment table.
func New() *Server {
	s := &Server{byID: make(map[string]domain.ShipmentDetail)}
	s.dashboard = template.Must(template.New("dashboard").Parse(dashboardTemplate))
	s.router = mux.NewRouter()
	s.router.Use(corsMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	s.router.HandleFunc("/add", s.handleAdd).Methods(http.MethodPost)
	s.router.HandleFunc("/toggle_autoadd", s.handleToggleAutoAdd).Methods(http.MethodPost)
	s.router.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	return s
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// ServeHTTP lets Server itself be used as an http.Handler, e.g. under
// httptest.NewServer in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	IDs interface{} `json:"ids"`
}

type queryResponse struct {
	Details []domain.ShipmentDetail `json:"details"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ids := normalizeIDs(req.IDs)
	details := make([]domain.ShipmentDetail, 0, len(ids))
	for _, id := range ids {
		details = append(details, s.detail(id))
	}
	writeJSON(w, http.StatusOK, queryResponse{Details: details})
}

func normalizeIDs(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// detail returns the record for id, or the debug/unknown placeholder per
// §6's bit-exact contract.
func (s *Server) detail(id string) domain.ShipmentDetail {
	s.mu.RLock()
	d, ok := s.byID[id]
	s.mu.RUnlock()
	if ok {
		return d
	}

	if s.autoAdd.Load() {
		d = domain.ShipmentDetail{
			ID:        id,
			Status:    "Debug",
			Location:  "LocalHost",
			Notes:     "Debug",
			Timestamp: timestamp(),
		}
		s.mu.Lock()
		s.byID[id] = d
		s.mu.Unlock()
		return d
	}

	return domain.ShipmentDetail{
		ID:        id,
		Status:    "Unknown",
		Location:  "Unknown",
		Notes:     "not available",
		Timestamp: timestamp(),
	}
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}

	d := domain.ShipmentDetail{
		ID:        r.FormValue("id"),
		Status:    r.FormValue("status"),
		Location:  r.FormValue("location"),
		Notes:     r.FormValue("notes"),
		Timestamp: timestamp(),
	}

	s.mu.Lock()
	s.byID[d.ID] = d
	s.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleToggleAutoAdd(w http.ResponseWriter, r *http.Request) {
	for {
		old := s.autoAdd.Load()
		if s.autoAdd.CompareAndSwap(old, !old) {
			break
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	shipments := make([]domain.ShipmentDetail, 0, len(s.byID))
	for _, d := range s.byID {
		shipments = append(shipments, d)
	}
	s.mu.RUnlock()

	data := struct {
		Shipments []domain.ShipmentDetail
		AutoAdd   bool
	}{Shipments: shipments, AutoAdd: s.autoAdd.Load()}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.dashboard.Execute(w, data); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "template render failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head><title>TrustMesh Shipment Feed</title></head>
<body>
<h1>Shipment Feed</h1>
<p>Auto-add: {{.AutoAdd}}</p>
<form method="post" action="/toggle_autoadd"><button type="submit">Toggle auto-add</button></form>
<table border="1">
<tr><th>ID</th><th>Status</th><th>Location</th><th>Notes</th><th>Timestamp</th></tr>
{{range .Shipments}}
<tr><td>{{.ID}}</td><td>{{.Status}}</td><td>{{.Location}}</td><td>{{.Notes}}</td><td>{{.Timestamp}}</td></tr>
{{end}}
</table>
<h2>Add shipment</h2>
<form method="post" action="/add">
ID: <input name="id"><br>
Status: <input name="status"><br>
Location: <input name="location"><br>
Notes: <input name="notes"><br>
<button type="submit">Add</button>
</form>
</body>
</html>`
