package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

type Server struct {
	Store    storage.Store
	Username string
	Password string
	// Tracker enables POST /api/products. A zero value leaves the API read-only
	// apart from deletes.
	Tracker tracker.Config
	// Lock, when set, is held around every write so API writes queue behind
	// CLI writers on the same SQLite file.
	Lock *utils.DBLock

	writeMu sync.Mutex
}

func New(store storage.Store, user, pass string) *Server {
	return &Server{
		Store:    store,
		Username: user,
		Password: pass,
	}
}

// Handler returns the routes of the web interface and JSON API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/products", s.basicAuth(s.handleProducts))
	mux.HandleFunc("POST /api/products", s.basicAuth(s.handleTrack))
	mux.HandleFunc("GET /api/products/{asin}", s.basicAuth(s.handleProduct))
	mux.HandleFunc("DELETE /api/products/{asin}", s.basicAuth(s.handleRemove))
	mux.HandleFunc("GET /api/products/{asin}/history", s.basicAuth(s.handleHistory))
	mux.HandleFunc("GET /api/compare", s.basicAuth(s.handleCompare))
	mux.HandleFunc("GET /api/changes", s.basicAuth(s.handleChanges))

	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleIndex))
	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

// locked runs fn while holding the database lock. The mutex serializes
// requests of this process, since the file lock is shared by all of them.
func (s *Server) locked(fn func() error) error {
	if s.Lock == nil {
		return fn()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.Lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := s.Lock.Unlock(); err != nil {
			utils.Log.Warn(err)
		}
	}()
	return fn()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
