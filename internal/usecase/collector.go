package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"localhub/internal/domain"
	"localhub/internal/infra/tracer"
)

// CollectReport summarizes one collector run.
type CollectReport struct {
	Cities  int
	Fetched int
	Added   int
}

// EventCollector pulls upcoming events for every city into the local event
// file so page loads can serve them without an upstream call.
type EventCollector struct {
	source        domain.EventSource
	writer        domain.EventWriter
	cities        []domain.City
	defaultRadius int
	logger        *slog.Logger
	now           func() time.Time
}

// NewEventCollector creates a collector over cities.
func NewEventCollector(source domain.EventSource, writer domain.EventWriter, cities []domain.City, defaultRadius int, logger *slog.Logger) *EventCollector {
	return &EventCollector{
		source:        source,
		writer:        writer,
		cities:        cities,
		defaultRadius: defaultRadius,
		logger:        logger,
		now:           time.Now,
	}
}

// Windows returns the current and next UTC calendar months.
func (c *EventCollector) Windows() []DateRange {
	now := c.now().UTC()
	cur := MonthRange(now.Year(), now.Month())
	next := MonthRange(cur.end.Year(), cur.end.Month())
	return []DateRange{cur, next}
}

// Run fetches every city and window and merges the results. A failing city
// does not stop the others; their errors are joined.
func (c *EventCollector) Run(ctx context.Context) (*CollectReport, error) {
	ctx, span := tracer.StartSpan(ctx, "events.collector.run")
	defer span.End()

	agg := &EventAggregator{defaultRadius: c.defaultRadius}
	if agg.defaultRadius <= 0 {
		agg.defaultRadius = 40000
	}

	report := &CollectReport{Cities: len(c.cities)}
	var (
		collected []domain.Event
		errs      []error
	)
	for _, city := range c.cities {
		for _, w := range c.Windows() {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			events, err := c.source.FetchEvents(ctx, agg.Query(city, w))
			if err != nil {
				c.logger.Warn("collect events failed", "city", city.Label(), "from", w.From.Format(domain.DayLayout), "error", err)
				errs = append(errs, fmt.Errorf("%s %s: %w", city.Label(), w.From.Format("2006-01"), err))
				continue
			}
			collected = append(collected, events...)
		}
	}
	report.Fetched = len(collected)

	added, err := c.writer.Merge(ctx, collected)
	if err != nil {
		tracer.RecordError(span, err)
		return report, domain.WrapOp("EventCollector.Run", err)
	}
	report.Added = added

	span.SetAttributes(tracer.IntAttr("events.fetched", report.Fetched), tracer.IntAttr("events.added", added))
	c.logger.Info("events collected", "cities", report.Cities, "fetched", report.Fetched, "added", added)
	return report, errors.Join(errs...)
}
