package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cronkite "github.com/newsdesk-ai/cronkite"
	"github.com/newsdesk-ai/cronkite/reporter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	completions int
	err         error // returned from Complete when set
}

func (s *stubBackend) Name() string    { return "stub" }
func (s *stubBackend) Model() string   { return "stub-1" }
func (s *stubBackend) IsHealthy() bool { return true }

func (s *stubBackend) Complete(_ context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.completions++
	return fmt.Sprintf("draft %d", s.completions), nil
}

func (s *stubBackend) Transcribe(_ context.Context, audio []byte, mimeType string) (string, error) {
	return "stub transcript", nil
}

func (s *stubBackend) DescribeImage(_ context.Context, image []byte) (string, error) {
	return "stub description", nil
}

func testServer(t *testing.T) (*Server, *stubBackend, string) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := cronkite.NewDB(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	outdir := t.TempDir()
	sb := &stubBackend{}
	agent := reporter.NewAgent(sb, outdir, logrus.NewEntry(logger))
	return NewServer(agent, db, t.TempDir(), "0", logrus.NewEntry(logger)), sb, outdir
}

func multipartBody(t *testing.T, files map[string][]byte) (io.Reader, string) {
	t.Helper()

	var sb strings.Builder
	mw := multipart.NewWriter(&sb)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".wav")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return strings.NewReader(sb.String()), mw.FormDataContentType()
}

func generateSession(t *testing.T, srv *Server) string {
	t.Helper()

	body, contentType := multipartBody(t, map[string][]byte{"audio": []byte("RIFFxxxx")})
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.sessions, 1)
	for id := range srv.sessions {
		return id
	}
	return ""
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)
	return w
}

func TestGenerateNoInput(t *testing.T) {
	srv, _, _ := testServer(t)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), statusNoInput)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Empty(t, srv.sessions, "no session should be created without input")
}

func TestGenerateAudio(t *testing.T) {
	srv, _, _ := testServer(t)

	body, contentType := multipartBody(t, map[string][]byte{"audio": []byte("RIFFxxxx")})
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	require.Contains(t, page, "draft 1")
	require.Contains(t, page, "stub transcript")
	require.Contains(t, page, noImagePlaceholder)
	require.Contains(t, page, "Revise Report")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.sessions, 1)
	for _, sess := range srv.sessions {
		require.Len(t, sess.Report, 1)
		require.Equal(t, reporter.AuthorModel, sess.Report[0].Author)
	}
}

func TestReviseBlankFeedback(t *testing.T) {
	srv, _, _ := testServer(t)
	id := generateSession(t, srv)

	w := postForm(srv, "/revise", url.Values{"session": {id}, "feedback": {"   "}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), statusNoFeedback)

	sess, ok := srv.session(id)
	require.True(t, ok)
	require.Len(t, sess.Report, 1, "blank feedback must not touch the history")
}

func TestRevise(t *testing.T) {
	srv, _, _ := testServer(t)
	id := generateSession(t, srv)

	w := postForm(srv, "/revise", url.Values{"session": {id}, "feedback": {"make it shorter"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "draft 2")

	sess, ok := srv.session(id)
	require.True(t, ok)
	require.Len(t, sess.Report, 3)
	require.Equal(t, reporter.AuthorUser, sess.Report[1].Author)
	require.Equal(t, reporter.AuthorModel, sess.Report[2].Author)
}

func TestGenerateBackendError(t *testing.T) {
	srv, sb, _ := testServer(t)
	sb.err = errors.New("model unavailable")

	body, contentType := multipartBody(t, map[string][]byte{"audio": []byte("RIFFxxxx")})
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Empty(t, srv.sessions, "failed generations must not leave a session behind")
}

func TestGenerateUploadTooLarge(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.maxUpload = 1024

	body, contentType := multipartBody(t, map[string][]byte{"audio": bytes.Repeat([]byte("x"), 2048)})
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviseBackendError(t *testing.T) {
	srv, sb, _ := testServer(t)
	id := generateSession(t, srv)
	sb.err = errors.New("model unavailable")

	w := postForm(srv, "/revise", url.Values{"session": {id}, "feedback": {"make it shorter"}})
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestReviseUnknownSession(t *testing.T) {
	srv, _, _ := testServer(t)

	w := postForm(srv, "/revise", url.Values{"session": {"nope"}, "feedback": {"hi"}})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSave(t *testing.T) {
	srv, _, outdir := testServer(t)
	id := generateSession(t, srv)

	w := postForm(srv, "/save", url.Values{"session": {id}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Report saved to:")

	path := filepath.Join(outdir, "news_report_1.txt")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "draft 1", string(data))

	// The save is also recorded in the archive.
	n, err := srv.db.CountReports(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSaveWithoutReport(t *testing.T) {
	srv, _, outdir := testServer(t)

	sess := &reporter.Session{ID: "empty"}
	srv.mu.Lock()
	srv.sessions[sess.ID] = sess
	srv.mu.Unlock()

	w := postForm(srv, "/save", url.Values{"session": {"empty"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), statusNoReport)

	entries, err := os.ReadDir(outdir)
	require.NoError(t, err)
	require.Empty(t, entries, "no file should be written")
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.serveHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"healthy":true,"backend":"stub","model":"stub-1"}`, w.Body.String())
}
