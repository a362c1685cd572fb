package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/config"
	"localhub/internal/usecase/eventbus"
)

func TestBuildAppJournalsSubmissions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Submissions.JournalFile = filepath.Join(t.TempDir(), "submissions.jsonl")

	a, err := buildApp(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if a.journal == nil {
		t.Fatal("expected journal to be opened")
	}

	a.bus.Publish(t.Context(), eventbus.TopicSubmissionReceived, domain.Submission{
		ID: "01JNZ5Q7M3X8T2B4C6D8E0F2G4", Host: "milpitas.local", Payload: []byte(`{"name":"A"}`),
	})
	a.close()

	data, err := os.ReadFile(cfg.Submissions.JournalFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "01JNZ5Q7M3X8T2B4C6D8E0F2G4") {
		t.Errorf("journal missing submission:\n%s", data)
	}
}

func TestBuildAppBadJournalSize(t *testing.T) {
	cfg := config.Defaults()
	cfg.Submissions.JournalFile = filepath.Join(t.TempDir(), "s.jsonl")
	cfg.Submissions.JournalMaxSize = "lots"

	if _, err := buildApp(cfg, quietLogger()); err == nil {
		t.Fatal("expected error for unparsable journal size")
	}
}

func TestSchedulerTasks(t *testing.T) {
	cfg := config.Defaults()
	a, err := buildApp(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()
	if s, err := a.scheduler(); err != nil || s != nil {
		t.Errorf("expected no scheduler without tasks, got %v %v", s, err)
	}

	cfg = config.Defaults()
	cfg.Events.CollectSchedule = "@hourly"
	cfg.Submissions.JournalFile = filepath.Join(t.TempDir(), "s.jsonl")
	cfg.Submissions.JournalMaxAge = 90 * 24 * time.Hour
	b, err := buildApp(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer b.close()
	s, err := b.scheduler()
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Error("expected journal compaction to be scheduled even without a Ticketmaster key")
	}
}
