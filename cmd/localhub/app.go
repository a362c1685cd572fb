package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"localhub/internal/adapter/business"
	"localhub/internal/adapter/city"
	"localhub/internal/adapter/events"
	"localhub/internal/adapter/httpapi"
	"localhub/internal/adapter/news"
	"localhub/internal/adapter/notify"
	"localhub/internal/adapter/weather"
	"localhub/internal/domain"
	"localhub/internal/infra/config"
	"localhub/internal/infra/httpclient"
	"localhub/internal/security"
	"localhub/internal/usecase"
	"localhub/internal/usecase/eventbus"
	"localhub/internal/usecase/scheduling"
)

// app holds the wired components shared by the serve and collect commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	cities       *city.Directory
	provider     domain.BusinessProvider
	eventStore   *events.FileStore
	ticketmaster *events.Ticketmaster
	collector    *usecase.EventCollector
	bus          *eventbus.Bus[domain.Submission]
	journal      *notify.Journal // nil when no journal file is configured
	server       *httpapi.Server
}

// close releases the bus and the submission journal.
func (a *app) close() {
	a.bus.Close()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close submission journal", "error", err)
		}
	}
}

// buildApp wires every component from cfg. Nothing is started.
func buildApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	dir, err := city.New(cfg.Cities)
	if err != nil {
		return nil, err
	}

	transport := httpclient.NewPooledTransport(httpclient.PoolConfig{})
	client := func(timeout time.Duration) *http.Client { return httpclient.New(transport, timeout) }

	provider := business.NewProvider(cfg.Business, client(cfg.Business.Timeout), log.With("component", "business"))
	search := usecase.NewSearchGateway(provider, cfg.Business.ActiveKey() != "", cfg.Business.DefaultRadiusM, log.With("component", "search"))

	evLog := log.With("component", "events")
	store := events.NewFileStore(cfg.Events.File, evLog)
	tm := events.NewTicketmaster(cfg.Events.Ticketmaster.APIKey, cfg.Events.Ticketmaster.BaseURL, client(cfg.Events.Timeout), evLog)
	var source domain.EventSource
	if tm.Configured() {
		source = tm
	}
	aggregator := usecase.NewEventAggregator(store, source, cfg.Events.DefaultRadiusM, evLog)
	collector := usecase.NewEventCollector(tm, store, dir.All(), cfg.Events.DefaultRadiusM, evLog.With("job", "collector"))

	wx := weather.NewOpenMeteo(cfg.Weather.BaseURL, cfg.Weather.CacheTTL, client(cfg.Weather.Timeout), log.With("component", "weather"))
	nw := news.NewGoogleNews(cfg.News.BaseURL, cfg.News.CacheTTL, cfg.News.MaxItems, client(cfg.News.Timeout), log.With("component", "news"))

	subLog := log.With("component", "submissions")
	bus := eventbus.New[domain.Submission](subLog)
	if cfg.Submissions.SlackWebhookURL != "" {
		slack := notify.NewSlack(cfg.Submissions.SlackWebhookURL, cfg.Submissions.SlackChannel, client(10*time.Second), subLog)
		bus.Subscribe(eventbus.TopicSubmissionReceived, usecase.NotifyHandler(slack, subLog))
	}
	var journal *notify.Journal
	if path := cfg.Submissions.JournalFile; path != "" {
		maxSize, err := config.ParseSize(cfg.Submissions.JournalMaxSize)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("submissions: %w", err)
		}
		journal, err = notify.OpenJournal(path, notify.Retention{MaxAge: cfg.Submissions.JournalMaxAge, MaxSize: maxSize})
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("submissions: %w", err)
		}
		bus.Subscribe(eventbus.TopicSubmissionReceived, usecase.NotifyHandler(journal, subLog))
	}
	subs, err := usecase.NewSubmissionService(bus, subLog)
	if err != nil {
		return nil, fmt.Errorf("submissions: %w", err)
	}

	proxyLog := log.With("component", "image-proxy")
	if cfg.ImageProxy.AllowPrivate {
		proxyLog.Warn("image proxy allows private targets; do not use in production")
	}
	proxy := httpapi.NewImageProxy(cfg.ImageProxy, security.NewURLGuard(nil), nil, proxyLog)
	if photos := business.NewGooglePhotos(cfg.Business.Google.APIKey, cfg.Business.Google.BaseURL); photos != nil {
		proxy.WithPhotos(photos)
	}

	srv := httpapi.NewServer(cfg.Server, httpapi.Deps{
		Cities:       dir,
		Search:       search,
		Events:       aggregator,
		Weather:      wx,
		News:         nw,
		Submissions:  subs,
		ImageProxy:   proxy,
		MaxBodyBytes: cfg.Submissions.MaxBodyBytes,
		Logger:       log.With("component", "http"),
	})

	return &app{
		cfg:          cfg,
		logger:       log,
		cities:       dir,
		provider:     provider,
		eventStore:   store,
		ticketmaster: tm,
		collector:    collector,
		bus:          bus,
		journal:      journal,
		server:       srv,
	}, nil
}

// journalCompactSchedule is how often the submission journal is trimmed.
const journalCompactSchedule = "@daily"

// scheduler registers the event collector when a schedule and a
// Ticketmaster key are configured, and journal compaction when the journal
// has a retention policy. It returns nil when there is nothing to run.
func (a *app) scheduler() (*scheduling.Scheduler, error) {
	var tasks []scheduling.ScheduledTask
	s := scheduling.NewScheduler(a.logger.With("component", "scheduler"))

	if schedule := a.cfg.Events.CollectSchedule; schedule != "" {
		if a.ticketmaster.Configured() {
			s.RegisterAction(scheduling.ActionCollectEvents, func(ctx context.Context) error {
				_, err := a.collector.Run(ctx)
				return err
			})
			tasks = append(tasks, scheduling.ScheduledTask{
				Name:     "collect-events",
				Schedule: schedule,
				Action:   scheduling.ActionCollectEvents,
				Timeout:  10 * time.Minute,
			})
		} else {
			a.logger.Warn("events.collect_schedule set but no Ticketmaster key; collector disabled")
		}
	}

	if a.journal != nil && (a.cfg.Submissions.JournalMaxAge > 0 || a.cfg.Submissions.JournalMaxSize != "") {
		s.RegisterAction(scheduling.ActionCompactJournal, func(context.Context) error {
			removed, err := a.journal.Compact()
			if err == nil && removed > 0 {
				a.logger.Info("submission journal compacted", "removed", removed, "path", a.journal.Path())
			}
			return err
		})
		tasks = append(tasks, scheduling.ScheduledTask{
			Name:     "compact-journal",
			Schedule: journalCompactSchedule,
			Action:   scheduling.ActionCompactJournal,
		})
	}

	if len(tasks) == 0 {
		return nil, nil
	}
	for _, task := range tasks {
		if err := s.AddTask(task); err != nil {
			return nil, err
		}
	}
	return s, nil
}
