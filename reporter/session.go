package reporter

// Author tags a report history entry.
type Author string

const (
	// AuthorModel marks report text produced by the model.
	AuthorModel Author = "model"
	// AuthorUser marks free-text feedback supplied by the user.
	AuthorUser Author = "user"
)

// Message is a single entry in a session's report history.
type Message struct {
	Author  Author
	Content string
}

// Session carries one browser session's input paths, derived text and report
// revision history. It is created on the first generate and mutated in place
// by subsequent revisions and saves. Sessions are not persisted.
type Session struct {
	ID string

	AudioPath string
	ImagePath string

	Transcript       string
	ImageDescription string

	// Report is the ordered revision history, oldest first.
	Report []Message

	FinalStatus string
}

func (s *Session) Append(author Author, content string) {
	s.Report = append(s.Report, Message{Author: author, Content: content})
}

// LatestReport returns the most recent model-authored report text.
func (s *Session) LatestReport() (string, bool) {
	return s.latest(AuthorModel)
}

// LatestFeedback returns the most recent user feedback text.
func (s *Session) LatestFeedback() (string, bool) {
	return s.latest(AuthorUser)
}

func (s *Session) latest(author Author) (string, bool) {
	for i := len(s.Report) - 1; i >= 0; i-- {
		if s.Report[i].Author == author {
			return s.Report[i].Content, true
		}
	}
	return "", false
}

// Revisions counts the model-authored entries beyond the initial report.
func (s *Session) Revisions() int {
	var n int
	for _, m := range s.Report {
		if m.Author == AuthorModel {
			n++
		}
	}
	if n > 0 {
		n--
	}
	return n
}
