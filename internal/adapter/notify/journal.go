package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// Retention bounds how much of the journal is kept.
type Retention struct {
	MaxAge  time.Duration // 0 = no limit
	MaxSize int64         // bytes; 0 = no limit
}

// Journal appends every submission to a JSONL file so reviewers have a
// durable record independent of Slack.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention Retention
	now       func() time.Time
}

// OpenJournal opens path for appending, creating it with 0600 permissions.
func OpenJournal(path string, retention Retention) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open submission journal: %w", err)
	}
	return &Journal{file: f, path: path, retention: retention, now: time.Now}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Notify writes sub as a single JSON line.
func (j *Journal) Notify(ctx context.Context, sub domain.Submission) error {
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = j.now().UTC()
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return domain.NewDomainError("Journal.Notify", domain.ErrJournalWrite, err.Error())
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return domain.NewDomainError("Journal.Notify", domain.ErrJournalWrite, err.Error())
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("submission.journaled", trace.WithAttributes(
			tracer.StringAttr("submission.id", sub.ID),
			tracer.StringAttr("submission.host", sub.Host),
		))
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Compact rewrites the journal keeping only entries within the retention
// policy. Oldest entries go first when the size limit is exceeded.
func (j *Journal) Compact() (removed int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	policy := j.retention
	if policy.MaxAge == 0 && policy.MaxSize == 0 {
		return 0, nil
	}
	if policy.MaxAge == 0 {
		info, err := os.Stat(j.path)
		if err != nil {
			return 0, fmt.Errorf("stat journal: %w", err)
		}
		if info.Size() <= policy.MaxSize {
			return 0, nil
		}
	}

	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = j.now().Add(-policy.MaxAge)
	}

	if err := j.file.Close(); err != nil {
		return 0, fmt.Errorf("close for compaction: %w", err)
	}
	defer func() {
		f, openErr := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if openErr != nil && err == nil {
			err = fmt.Errorf("reopen journal: %w", openErr)
		}
		j.file = f
	}()

	kept, keptSize, removed, err := readKept(j.path, cutoff)
	if err != nil {
		return 0, err
	}

	for len(kept) > 0 && policy.MaxSize > 0 && keptSize > policy.MaxSize {
		keptSize -= int64(len(kept[0])) + 1
		kept = kept[1:]
		removed++
	}

	tmpPath := j.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("create temp journal: %w", err)
	}
	w := bufio.NewWriter(tmp)
	for _, line := range kept {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write temp journal: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, j.path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("replace journal: %w", err)
	}
	return removed, nil
}

func readKept(path string, cutoff time.Time) (kept [][]byte, size int64, removed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !cutoff.IsZero() {
			var entry struct {
				ReceivedAt time.Time `json:"receivedAt"`
			}
			if json.Unmarshal(line, &entry) == nil && !entry.ReceivedAt.IsZero() && entry.ReceivedAt.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, append([]byte(nil), line...))
		size += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("scan journal: %w", err)
	}
	return kept, size, removed, nil
}
