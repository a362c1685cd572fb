package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
	"localhub/internal/usecase/eventbus"
)

// ListingSchema describes a well-formed business submission. Payloads that
// fail it are still accepted and flagged for review.
const ListingSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name":        {"type": "string", "minLength": 1, "maxLength": 200},
    "website":     {"type": "string", "maxLength": 500, "pattern": "^https?://"},
    "email":       {"type": "string", "format": "email"},
    "phone":       {"type": "string", "maxLength": 40, "pattern": "^[0-9+().\\-\\s]*$"},
    "address":     {"type": "string", "maxLength": 300},
    "category":    {"type": "string", "maxLength": 100},
    "description": {"type": "string", "maxLength": 2000}
  }
}`

// SubmitResponse is the /api/submit-business body.
type SubmitResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// SubmissionPublisher hands accepted submissions to asynchronous consumers.
type SubmissionPublisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, s domain.Submission)
}

// SubmissionService accepts business listing requests.
type SubmissionService struct {
	schema    *jsonschema.Schema
	publisher SubmissionPublisher // nil disables fan-out
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmissionService compiles the listing schema. publisher may be nil.
func NewSubmissionService(publisher SubmissionPublisher, logger *slog.Logger) (*SubmissionService, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("listing.json", strings.NewReader(ListingSchema)); err != nil {
		return nil, fmt.Errorf("add listing schema: %w", err)
	}
	schema, err := compiler.Compile("listing.json")
	if err != nil {
		return nil, fmt.Errorf("compile listing schema: %w", err)
	}
	return &SubmissionService{schema: schema, publisher: publisher, logger: logger, now: time.Now}, nil
}

// Submit records body for city. Bodies that are not JSON fail with
// ErrInvalidInput; anything else is accepted.
func (s *SubmissionService) Submit(ctx context.Context, city domain.City, host string, body []byte) (*SubmitResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "submission.submit")
	defer span.End()

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError("SubmissionService.Submit", domain.ErrInvalidInput, "body is not JSON")
	}

	now := s.now().UTC()
	sub := domain.Submission{
		ID:         newSubmissionID(now),
		Host:       host,
		City:       city.Label(),
		Payload:    json.RawMessage(body),
		ReceivedAt: now,
	}
	sub.Problems = s.Validate(doc)
	sub.Valid = len(sub.Problems) == 0

	span.SetAttributes(tracer.StringAttr("submission.id", sub.ID), tracer.BoolAttr("submission.valid", sub.Valid))
	s.logger.Info("business submission received",
		"id", sub.ID,
		"host", host,
		"city", sub.City,
		"valid", sub.Valid,
		"problems", sub.Problems,
		"payload", string(body),
	)

	if s.publisher != nil {
		s.publisher.Publish(ctx, eventbus.TopicSubmissionReceived, sub)
	}
	return &SubmitResponse{OK: true, ID: sub.ID}, nil
}

// Validate returns the schema violations of doc, one line per failing
// location, sorted. An empty result means doc is a valid listing.
func (s *SubmissionService) Validate(doc any) []string {
	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var problems []string
	collectLeaves(ve, &problems)
	sort.Strings(problems)
	return problems
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// NotifyHandler adapts a notifier into a bus handler. Failures are logged.
func NotifyHandler(n domain.SubmissionNotifier, logger *slog.Logger) eventbus.Handler[domain.Submission] {
	return func(ctx context.Context, _ eventbus.Topic, sub domain.Submission) {
		if n == nil {
			return
		}
		if err := n.Notify(ctx, sub); err != nil {
			logger.Warn("submission notification failed", "id", sub.ID, "error", err)
		}
	}
}

func newSubmissionID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
