package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localhub/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSubmission(valid bool) domain.Submission {
	s := domain.Submission{
		ID:         "01JNZ5Q7M3X8T2B4C6D8E0F2G4",
		Host:       "milpitas.local",
		City:       "Milpitas, CA",
		Payload:    json.RawMessage(`{"name":"Alpha Cafe","website":"https://alpha.example"}`),
		Valid:      valid,
		ReceivedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if !valid {
		s.Problems = []string{"missing property 'email'"}
	}
	return s
}

func TestSlackNotifyPostsWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	n := NewSlack(srv.URL, "#listings", srv.Client(), newTestLogger())
	require.NoError(t, n.Notify(context.Background(), testSubmission(false)))

	assert.Equal(t, "#listings", got["channel"])
	text, _ := got["text"].(string)
	assert.Contains(t, text, "Milpitas, CA")
	assert.Contains(t, text, "needs review")

	raw, err := json.Marshal(got["blocks"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Alpha Cafe")
	assert.Contains(t, string(raw), "missing property")
}

func TestSlackNotifyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewSlack(srv.URL, "", srv.Client(), newTestLogger())
	err := n.Notify(context.Background(), testSubmission(true))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestBuildMessageValid(t *testing.T) {
	msg := buildMessage(testSubmission(true))
	assert.Contains(t, msg.Text, "valid")
	assert.NotContains(t, msg.Text, "needs review")
	require.NotNil(t, msg.Blocks)
	assert.Len(t, msg.Blocks.BlockSet, 2)
}

func TestPayloadExcerptTruncates(t *testing.T) {
	big := `{"description":"` + strings.Repeat("x", 5000) + `"}`
	out := payloadExcerpt(json.RawMessage(big))
	assert.LessOrEqual(t, len(out), maxPayloadChars+4)
	assert.True(t, strings.HasSuffix(out, "..."))

	assert.Equal(t, "not json", payloadExcerpt(json.RawMessage("not json")))
}
