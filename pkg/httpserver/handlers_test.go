package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/filecrate/filecrate/internal/metadata"
	"github.com/filecrate/filecrate/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *metadata.Store) {
	t.Helper()

	store, err := storage.NewFileSystemStorage(storage.Options{Root: t.TempDir()})
	require.NoError(t, err)

	records, err := metadata.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	log := logrus.New()
	log.Out = io.Discard

	return New(store, records, log, opts), records
}

func multipartBody(t *testing.T, field, filename, contents string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, contents)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, router http.Handler, filename, contents string) metadata.Record {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, contents, nil)
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var rec metadata.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	return rec
}

func TestUploadAndDownload(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	router := srv.Router()

	rec := upload(t, router, "hello.txt", "hello world")
	assert.Equal(t, "hello.txt", rec.StoredName)
	assert.Equal(t, int64(11), rec.Size)
	assert.NotEmpty(t, rec.SHA256)

	req := httptest.NewRequest(http.MethodGet, "/files/hello.txt", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello world", rr.Body.String())
}

func TestUploadTwiceGetsSuffixedName(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	router := srv.Router()

	first := upload(t, router, "dup.txt", "one")
	second := upload(t, router, "dup.txt", "two")

	assert.Equal(t, "dup.txt", first.StoredName)
	assert.Equal(t, "dup_1.txt", second.StoredName)
}

func TestUploadRequiresFilePart(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/files", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadRejectsTraversalName(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	body, contentType := multipartBody(t, "file", "x.txt", "x", map[string]string{"name": "../../etc/passwd"})
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStat(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	router := srv.Router()

	upload(t, router, "sized.bin", "12345")

	req := httptest.NewRequest(http.MethodHead, "/files/sized.bin", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Content-Length"))

	req = httptest.NewRequest(http.MethodHead, "/files/absent.bin", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	srv, records := newTestServer(t, Options{})
	router := srv.Router()

	rec := upload(t, router, "bye.txt", "bye")

	req := httptest.NewRequest(http.MethodDelete, "/files/bye.txt", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/files/bye.txt", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	_, err := records.Get(rec.StoredName)
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestList(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	router := srv.Router()

	upload(t, router, "a.txt", "a")
	upload(t, router, "b.txt", "b")

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var recs []metadata.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Len(t, recs, 2)
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sekrit"), bcrypt.MinCost)
	require.NoError(t, err)

	srv, _ := newTestServer(t, Options{APIKeyHash: string(hash)})
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
