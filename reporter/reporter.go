package reporter

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/newsdesk-ai/cronkite/backend"
	"github.com/sirupsen/logrus"
)

// ErrNoReport is returned by SaveReport when the session has no
// model-authored report to save.
var ErrNoReport = errors.New("no report available to save")

// Agent runs the generate/revise/save pipeline against a single shared
// backend. Generation requests are serialized, the backends are not built
// for concurrent in-flight requests.
type Agent struct {
	b         backend.Backend
	outputDir string
	log       *logrus.Entry

	genmu sync.Mutex
}

func NewAgent(b backend.Backend, outputDir string, log *logrus.Entry) *Agent {
	return &Agent{
		b:         b,
		outputDir: outputDir,
		log:       log,
	}
}

func (a *Agent) Backend() backend.Backend { return a.b }

// Generate populates a fresh session: transcribe the audio (if any), describe
// the image (if any), then compose the initial report. The report history ends
// up with exactly one model-authored entry.
func (a *Agent) Generate(ctx context.Context, sess *Session) error {
	transcript, err := a.Transcribe(ctx, sess.AudioPath)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", sess.AudioPath, err)
	}
	sess.Transcript = transcript

	description, err := a.DescribeImage(ctx, sess.ImagePath)
	if err != nil {
		return fmt.Errorf("describe %s: %w", sess.ImagePath, err)
	}
	sess.ImageDescription = description

	report, err := a.ComposeReport(ctx, sess.Transcript, sess.ImageDescription)
	if err != nil {
		return fmt.Errorf("compose report: %w", err)
	}
	sess.Append(AuthorModel, report)

	return nil
}

// Revise appends the feedback to the report history, generates a revision
// and appends that too. Callers are expected to reject blank feedback first.
func (a *Agent) Revise(ctx context.Context, sess *Session, feedback string) (string, error) {
	sess.Append(AuthorUser, feedback)

	revised, err := a.ReviseReport(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("revise report: %w", err)
	}
	sess.Append(AuthorModel, revised)

	return revised, nil
}

// Transcribe returns a transcription of the audio file at audioPath, or an
// empty string if no path was given.
func (a *Agent) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if audioPath == "" {
		return "", nil
	}
	a.log.Info("transcribing audio")

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}
	mimeType, err := audioMIMEType(audioPath)
	if err != nil {
		return "", err
	}

	a.genmu.Lock()
	defer a.genmu.Unlock()
	return a.b.Transcribe(ctx, data, mimeType)
}

// DescribeImage returns a description of the image file at imagePath, or an
// empty string if no path was given.
func (a *Agent) DescribeImage(ctx context.Context, imagePath string) (string, error) {
	if imagePath == "" {
		return "", nil
	}
	a.log.Info("describing image")

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}

	a.genmu.Lock()
	defer a.genmu.Unlock()
	return a.b.DescribeImage(ctx, data)
}

// ComposeReport synthesizes a news report from whichever of the two text
// sources are present. With neither present it returns NoInputMessage
// without calling the model.
func (a *Agent) ComposeReport(ctx context.Context, transcript, description string) (string, error) {
	if transcript == "" && description == "" {
		return NoInputMessage, nil
	}
	a.log.Info("generating news report")

	a.genmu.Lock()
	defer a.genmu.Unlock()
	return a.b.Complete(ctx, composePrompt(transcript, description))
}

// ReviseReport generates a new revision of the session's latest report
// addressing the latest user feedback.
func (a *Agent) ReviseReport(ctx context.Context, sess *Session) (string, error) {
	a.log.Info("revising report")

	draft, _ := sess.LatestReport()
	feedback, _ := sess.LatestFeedback()

	a.genmu.Lock()
	defer a.genmu.Unlock()
	return a.b.Complete(ctx, revisePrompt(sess.Transcript, sess.ImageDescription, draft, feedback))
}

// SaveReport writes the session's latest model-authored report to a numbered
// file in the output directory and returns the path. The number is derived
// from the directory entry count at save time, so concurrent saves can race;
// fine at demo scale.
func (a *Agent) SaveReport(sess *Session) (string, error) {
	report, ok := sess.LatestReport()
	if !ok {
		return "", ErrNoReport
	}

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", err
	}
	entries, err := os.ReadDir(a.outputDir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(a.outputDir, fmt.Sprintf("news_report_%d.txt", len(entries)+1))
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", err
	}
	a.log.WithField("path", path).Info("report saved")

	return path, nil
}

func audioMIMEType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	// mime.TypeByExtension misses several common audio containers.
	switch ext {
	case ".wav":
		return "audio/wav", nil
	case ".mp3":
		return "audio/mpeg", nil
	case ".m4a", ".mp4":
		return "audio/mp4", nil
	case ".ogg":
		return "audio/ogg", nil
	case ".flac":
		return "audio/flac", nil
	case ".webm":
		return "audio/webm", nil
	}

	if mt := mime.TypeByExtension(ext); strings.HasPrefix(mt, "audio/") {
		return strings.TrimSpace(strings.Split(mt, ";")[0]), nil
	}
	return "", fmt.Errorf("unsupported audio file extension %q", ext)
}
