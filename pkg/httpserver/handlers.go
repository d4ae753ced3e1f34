package httpserver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filecrate/filecrate/internal/metadata"
	"github.com/filecrate/filecrate/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fileParam extracts the relative file name from the wildcard route. The
// storage layer re-validates it; this only undoes URL escaping.
func fileParam(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return name
}

// handleUpload accepts a multipart form with a "file" part and an optional
// "name" field overriding the client filename. The body streams through a
// SHA-256 hasher straight into the store; nothing is buffered whole.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	hasher := sha256.New()
	stored, err := s.store.Save(name, io.TeeReader(file, hasher))
	if err != nil {
		s.storageError(w, err)
		return
	}

	size, err := s.store.Size(stored)
	if err != nil {
		s.storageError(w, err)
		return
	}

	rec := metadata.NewRecord(stored, header.Filename, header.Header.Get("Content-Type"), size, hex.EncodeToString(hasher.Sum(nil)))
	if s.records != nil {
		if err := s.records.Put(rec); err != nil {
			// The file is safely on disk; the record is bookkeeping.
			s.log.WithError(err).WithField("stored_name", stored).Warn("failed to write upload record")
		}
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := fileParam(r)
	rc, err := s.store.Open(name)
	if err != nil {
		s.storageError(w, err)
		return
	}
	defer rc.Close()

	http.ServeContent(w, r, path.Base(name), time.Time{}, rc)
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	size, err := s.store.Size(fileParam(r))
	if err != nil {
		s.storageError(w, err)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := fileParam(r)
	if err := s.store.Delete(name); err != nil {
		s.storageError(w, err)
		return
	}
	if s.records != nil {
		if err := s.records.Delete(name); err != nil {
			s.log.WithError(err).WithField("stored_name", name).Warn("failed to delete upload record")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "upload records are disabled")
		return
	}
	recs, err := s.records.List()
	if err != nil {
		s.log.WithError(err).Error("failed to list upload records")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []metadata.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// storageError maps the storage error taxonomy onto HTTP statuses.
func (s *Server) storageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrTraversal):
		writeError(w, http.StatusBadRequest, "invalid file name")
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, fs.ErrExist):
		writeError(w, http.StatusConflict, "file already exists")
	default:
		s.log.WithError(err).Error("storage operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
