// Package httpserver exposes a Storage over HTTP: multipart uploads,
// downloads, stat, delete and upload-record listing.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/filecrate/filecrate/internal/metadata"
	"github.com/filecrate/filecrate/internal/storage"
)

// Options configures the HTTP surface.
type Options struct {
	// APIKeyHash is the bcrypt hash of the bearer key protecting the file
	// routes. Empty disables authentication.
	APIKeyHash string
	// MaxUploadBytes caps the size of an upload request body. Zero means
	// no cap.
	MaxUploadBytes int64
	// AllowedOrigins is passed through to the CORS middleware. Empty
	// allows any origin.
	AllowedOrigins []string
}

// Server serves a Storage and, optionally, its upload records.
type Server struct {
	store   storage.Storage
	records *metadata.Store
	log     *logrus.Logger
	opts    Options
}

// New builds a Server. records may be nil, which disables the listing
// endpoint and record bookkeeping but leaves the file routes working.
func New(store storage.Storage, records *metadata.Store, log *logrus.Logger, opts Options) *Server {
	return &Server{store: store, records: records, log: log, opts: opts}
}

// Router assembles the chi router with the middleware chain.
func (s *Server) Router() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.opts.APIKeyHash))
		r.Post("/files", s.handleUpload)
		r.Get("/files", s.handleList)
		r.Get("/files/*", s.handleDownload)
		r.Head("/files/*", s.handleStat)
		r.Delete("/files/*", s.handleDelete)
	})

	return r
}

// ListenAndServe runs the server on addr until it fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.WithField("addr", addr).Info("http server listening")
	return http.ListenAndServe(addr, s.Router())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
