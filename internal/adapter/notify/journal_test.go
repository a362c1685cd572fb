package notify

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func readJournal(t *testing.T, path string) []domain.Submission {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []domain.Submission
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s domain.Submission
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		out = append(out, s)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJournalAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.jsonl")
	j, err := OpenJournal(path, Retention{})
	require.NoError(t, err)

	first := testSubmission(true)
	second := testSubmission(false)
	second.ID = "01JNZ5Q7M3X8T2B4C6D8E0F2G5"
	require.NoError(t, j.Notify(t.Context(), first))
	require.NoError(t, j.Notify(t.Context(), second))
	require.NoError(t, j.Close())

	got := readJournal(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Equal(t, []string{"missing property 'email'"}, got[1].Problems)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestJournalStampsMissingTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.jsonl")
	j, err := OpenJournal(path, Retention{})
	require.NoError(t, err)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	sub := testSubmission(true)
	sub.ReceivedAt = time.Time{}
	require.NoError(t, j.Notify(t.Context(), sub))
	require.NoError(t, j.Close())

	got := readJournal(t, path)
	require.Len(t, got, 1)
	assert.True(t, got[0].ReceivedAt.Equal(fixed))
}

func TestJournalWriteAfterClose(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "s.jsonl"), Retention{})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	err = j.Notify(t.Context(), testSubmission(true))
	assert.True(t, errors.Is(err, domain.ErrJournalWrite))
}

func TestJournalCompactByAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.jsonl")
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	j, err := OpenJournal(path, Retention{MaxAge: 30 * 24 * time.Hour})
	require.NoError(t, err)
	j.now = func() time.Time { return now }

	old := testSubmission(true)
	old.ID = "old"
	old.ReceivedAt = now.AddDate(0, -2, 0)
	fresh := testSubmission(true)
	fresh.ID = "fresh"
	fresh.ReceivedAt = now.AddDate(0, 0, -1)
	require.NoError(t, j.Notify(t.Context(), old))
	require.NoError(t, j.Notify(t.Context(), fresh))

	removed, err := j.Compact()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// still writable after compaction
	later := testSubmission(true)
	later.ID = "later"
	later.ReceivedAt = now
	require.NoError(t, j.Notify(t.Context(), later))
	require.NoError(t, j.Close())

	got := readJournal(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "later", got[1].ID)
}

func TestJournalCompactBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.jsonl")
	j, err := OpenJournal(path, Retention{})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		s := testSubmission(true)
		s.ID = id
		require.NoError(t, j.Notify(t.Context(), s))
	}
	line, err := json.Marshal(func() domain.Submission { s := testSubmission(true); s.ID = "c"; return s }())
	require.NoError(t, err)
	j.retention = Retention{MaxSize: int64(len(line)) + 1}

	removed, err := j.Compact()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	require.NoError(t, j.Close())

	got := readJournal(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestJournalCompactNoPolicy(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "s.jsonl"), Retention{})
	require.NoError(t, err)
	defer j.Close()

	removed, err := j.Compact()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
