// Package notify forwards business submissions to reviewers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"localhub/internal/domain"
)

// maxPayloadChars bounds the JSON excerpt posted to Slack.
const maxPayloadChars = 2500

// Slack posts submissions to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlack creates a webhook notifier. A nil client uses http.DefaultClient.
func NewSlack(webhookURL, channel string, client *http.Client, logger *slog.Logger) *Slack {
	if client == nil {
		client = http.DefaultClient
	}
	return &Slack{webhookURL: webhookURL, channel: channel, client: client, logger: logger}
}

// Notify implements domain.SubmissionNotifier.
func (s *Slack) Notify(ctx context.Context, sub domain.Submission) error {
	msg := buildMessage(sub)
	msg.Channel = s.channel
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return domain.UpstreamError("Slack.Notify", err)
	}
	s.logger.Debug("submission posted to slack", "id", sub.ID)
	return nil
}

func buildMessage(sub domain.Submission) *slack.WebhookMessage {
	status := ":white_check_mark: valid"
	if !sub.Valid {
		status = ":warning: needs review"
	}
	header := fmt.Sprintf("New business submission for %s (%s)", sub.City, status)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*ID*\n"+sub.ID, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Host*\n"+sub.Host, false, false),
	}
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*"+header+"*", false, false), fields, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "```"+payloadExcerpt(sub.Payload)+"```", false, false), nil, nil),
	}
	if len(sub.Problems) > 0 {
		text := "*Problems*\n• " + strings.Join(sub.Problems, "\n• ")
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}

	return &slack.WebhookMessage{
		Text:   header,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func payloadExcerpt(raw json.RawMessage) string {
	var v any
	out := string(raw)
	if err := json.Unmarshal(raw, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			out = string(pretty)
		}
	}
	if len(out) > maxPayloadChars {
		out = out[:maxPayloadChars] + "\n..."
	}
	return out
}

var _ domain.SubmissionNotifier = (*Slack)(nil)
