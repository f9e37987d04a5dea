package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cronkite "github.com/newsdesk-ai/cronkite"
	"github.com/newsdesk-ai/cronkite/reporter"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
)

var (
	//go:embed tmpl/*.html
	tmplFS embed.FS

	//go:embed static
	staticFS embed.FS

	indexTmpl   *template.Template
	reportsTmpl *template.Template
	reportTmpl  *template.Template
)

const (
	noAudioPlaceholder = "No audio was provided to transcribe."
	noImagePlaceholder = "No image was provided to describe."

	statusNoInput     = "Please provide an audio or image file."
	statusNoFeedback  = "Please provide feedback."
	statusNoReport    = "Error: No report available to save."
	maxUploadBytes    = 64 << 20
	generationTimeout = 5 * time.Minute
)

func init() {
	indexTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/index.html"))
	reportsTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/reports.html"))
	reportTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/report.html"))
}

type Server struct {
	hs         *http.Server
	agent      *reporter.Agent
	db         *cronkite.DB
	uploadsDir string
	maxUpload  int64
	logger     *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*reporter.Session
}

func NewServer(agent *reporter.Agent, db *cronkite.DB, uploadsDir, port string, logger *logrus.Entry) *Server {
	srv := &Server{
		agent:      agent,
		db:         db,
		uploadsDir: uploadsDir,
		maxUpload:  maxUploadBytes,
		logger:     logger,
		sessions:   make(map[string]*reporter.Session),
	}

	srv.hs = &http.Server{
		Addr:    net.JoinHostPort("0.0.0.0", port),
		Handler: srv.serveHandler(),
	}

	return srv
}

func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) serveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.Handle("POST /generate", s.serveGenerate())
	mux.Handle("POST /revise", s.serveRevise())
	mux.Handle("POST /save", s.serveSave())
	mux.Handle("GET /reports", s.serveReports())
	mux.Handle("GET /reports/{id}", s.serveReport())
	mux.Handle("GET /health", s.serveHealth())
	mux.Handle("GET /{$}", s.serveRoot())

	return mux
}

// pageView is the data handed to the index template. A nil SessionID means no
// generation has happened yet and the revision controls stay hidden.
type pageView struct {
	Status      string
	SessionID   string
	Report      string
	Transcript  string
	Description string
}

func (s *Server) serveRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		indexTmpl.Execute(w, pageView{})
	}
}

func (s *Server) serveGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		// MaxBytesReader caps the request body itself, ParseMultipartForm's
		// argument only limits in-memory buffering.
		req.Body = http.MaxBytesReader(w, req.Body, s.maxUpload)
		if err := req.ParseMultipartForm(s.maxUpload); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		audioPath, err := s.saveUpload(req, "audio")
		if err != nil {
			s.logger.WithError(err).Error("audio upload failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		imagePath, err := s.saveUpload(req, "image")
		if err != nil {
			s.logger.WithError(err).Error("image upload failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if audioPath == "" && imagePath == "" {
			indexTmpl.Execute(w, pageView{Status: statusNoInput})
			return
		}

		sess := &reporter.Session{
			ID:        uuid.NewString(),
			AudioPath: audioPath,
			ImagePath: imagePath,
		}

		ctx, cancel := context.WithTimeout(req.Context(), generationTimeout)
		defer cancel()
		if err := s.agent.Generate(ctx, sess); err != nil {
			s.logger.WithError(err).Error("generate failed")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		s.mu.Lock()
		s.sessions[sess.ID] = sess
		s.mu.Unlock()

		indexTmpl.Execute(w, s.viewFor(sess, ""))
	}
}

func (s *Server) serveRevise() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, ok := s.session(req.FormValue("session"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		feedback := req.FormValue("feedback")
		if strings.TrimSpace(feedback) == "" {
			indexTmpl.Execute(w, s.viewFor(sess, statusNoFeedback))
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), generationTimeout)
		defer cancel()
		if _, err := s.agent.Revise(ctx, sess, feedback); err != nil {
			s.logger.WithError(err).Error("revise failed")
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		indexTmpl.Execute(w, s.viewFor(sess, ""))
	}
}

func (s *Server) serveSave() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, ok := s.session(req.FormValue("session"))
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		path, err := s.agent.SaveReport(sess)
		if err != nil {
			status := statusNoReport
			if !errors.Is(err, reporter.ErrNoReport) {
				s.logger.WithError(err).Error("save failed")
				status = "Error: " + err.Error()
			}
			sess.FinalStatus = status
			indexTmpl.Execute(w, s.viewFor(sess, status))
			return
		}

		report, _ := sess.LatestReport()
		b := s.agent.Backend()
		if _, err := s.db.InsertReport(req.Context(), &cronkite.Report{
			Path:             path,
			Content:          report,
			Backend:          b.Name(),
			Model:            b.Model(),
			Transcript:       sess.Transcript,
			ImageDescription: sess.ImageDescription,
			Revisions:        sess.Revisions(),
			CreatedAt:        time.Now(),
		}); err != nil {
			// The file on disk is the canonical copy, losing the archive row
			// is not fatal.
			s.logger.WithError(err).Error("archive insert failed")
		}

		sess.FinalStatus = fmt.Sprintf("Report saved to: %s", path)
		indexTmpl.Execute(w, s.viewFor(sess, sess.FinalStatus))
	}
}

func (s *Server) serveReports() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reports, err := s.db.ListReports(req.Context())
		if err != nil {
			s.logger.WithError(err).Error("list reports failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		type reportrow struct {
			Id        int
			Path      string
			Backend   string
			Revisions int
			CreatedAt string
		}
		rows := struct {
			Reports []reportrow
		}{}
		for _, r := range reports {
			rows.Reports = append(rows.Reports, reportrow{
				Id:        r.Id,
				Path:      r.Path,
				Backend:   r.Backend,
				Revisions: r.Revisions,
				CreatedAt: r.CreatedAt.Format(time.RFC822),
			})
		}
		reportsTmpl.Execute(w, rows)
	}
}

func (s *Server) serveReport() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.Atoi(req.PathValue("id"))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		r, err := s.db.GetReport(req.Context(), id)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(r.Content), &buf); err != nil {
			s.logger.WithError(err).Error("markdown render failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		reportTmpl.Execute(w, struct {
			Id          int
			Path        string
			Backend     string
			Model       string
			CreatedAt   string
			ContentHTML template.HTML
		}{
			Id:          r.Id,
			Path:        r.Path,
			Backend:     r.Backend,
			Model:       r.Model,
			CreatedAt:   r.CreatedAt.Format(time.RFC822),
			ContentHTML: template.HTML(buf.String()),
		})
	}
}

func (s *Server) serveHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		b := s.agent.Backend()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Healthy bool   `json:"healthy"`
			Backend string `json:"backend"`
			Model   string `json:"model"`
		}{
			Healthy: b.IsHealthy(),
			Backend: b.Name(),
			Model:   b.Model(),
		})
	}
}

func (s *Server) session(id string) (*reporter.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) viewFor(sess *reporter.Session, status string) pageView {
	report, _ := sess.LatestReport()

	pv := pageView{
		Status:      status,
		SessionID:   sess.ID,
		Report:      report,
		Transcript:  sess.Transcript,
		Description: sess.ImageDescription,
	}
	if pv.Transcript == "" {
		pv.Transcript = noAudioPlaceholder
	}
	if pv.Description == "" {
		pv.Description = noImagePlaceholder
	}
	return pv
}

// saveUpload writes the named multipart file into the uploads directory and
// returns its path, or "" when the field was left empty.
func (s *Server) saveUpload(req *http.Request, field string) (string, error) {
	file, hdr, err := req.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.uploadsDir, uuid.NewString()+filepath.Ext(hdr.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}
