package cronkite

import (
	"fmt"
	"testing"
	"time"
)

func TestInsertReport(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r, err := db.InsertReport(t.Context(), &Report{
		Path:             "saved_reports/news_report_1.txt",
		Content:          "A fire broke out downtown this morning.",
		Backend:          "gemini",
		Model:            "gemini-2.5-flash",
		Transcript:       "there was a fire downtown",
		ImageDescription: "Smoke rising over a city block.",
		Revisions:        2,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if r.Id == 0 {
		t.Error("Expected a non-zero id after insert")
	}

	got, err := db.GetReport(t.Context(), r.Id)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := r.Content, got.Content; expected != actual {
		t.Errorf("Expected content %q, got %q", expected, actual)
	}
	if expected, actual := 2, got.Revisions; expected != actual {
		t.Errorf("Expected %d revisions, got %d", expected, actual)
	}
}

func TestListReports(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		_, err := db.InsertReport(t.Context(), &Report{
			Path:      fmt.Sprintf("saved_reports/news_report_%d.txt", i+1),
			Content:   fmt.Sprintf("report %d", i+1),
			Backend:   "llama",
			Model:     "llama-server",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
	}

	reports, err := db.ListReports(t.Context())
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := 3, len(reports); expected != actual {
		t.Fatalf("Expected %d reports, got %d", expected, actual)
	}
	// Newest first
	if expected, actual := "report 3", reports[0].Content; expected != actual {
		t.Errorf("Expected %q first, got %q", expected, actual)
	}

	n, err := db.CountReports(t.Context())
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := 3, n; expected != actual {
		t.Errorf("Expected count %d, got %d", expected, actual)
	}
}
