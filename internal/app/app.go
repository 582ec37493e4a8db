package app

import (
	"context"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/kds/internal/events"
	"github.com/appetiteclub/kds/internal/kds"
	"github.com/appetiteclub/kds/internal/pg"
	"github.com/appetiteclub/kds/pkg"
	"github.com/appetiteclub/kds/pkg/event"
)

const (
	AppName    = "kds"
	AppVersion = "0.1.0"
)

// App encapsulates the KDS sync service
type App struct {
	config *apt.Config
	logger apt.Logger
	micro  *apt.Micro
	store  *pg.Store
}

// New creates a new KDS sync service application
func New(config *apt.Config, logger apt.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	a.store = pg.NewStore(a.config, a.logger)

	cache := kds.NewSnapshotCache()
	registry := kds.NewRegistry()
	hub := kds.NewHub(registry, cache, a.logger)
	refresher := kds.NewRefresher(a.store, cache, a.logger)

	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	publisher, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		return err
	}

	printer := kds.NewPrinter(cache, publisher, a.logger)
	processor := kds.NewCommandProcessor(a.store, cache, refresher, registry, hub, publisher, printer, a.logger)

	handler := kds.NewHandler(kds.HandlerDeps{
		Registry:  registry,
		Cache:     cache,
		Hub:       hub,
		Processor: processor,
	}, a.config, a.logger)

	streamName, _ := a.config.GetString("nats.feed.stream")
	if streamName == "" {
		streamName = event.POSChangesStream
	}
	topic, _ := a.config.GetString("nats.feed.topic")
	if topic == "" {
		topic = event.POSChangesTopic
	}
	consumerName, _ := a.config.GetString("nats.feed.consumer")
	if consumerName == "" {
		consumerName = "kds-sync"
	}

	feed := pkg.NewNATSChangeFeed(pkg.NATSChangeFeedConfig{
		URL:          natsURL,
		StreamName:   streamName,
		Topic:        topic,
		ConsumerName: consumerName,
		MaxWait:      2 * time.Second,
		MaxAge:       time.Hour,
	})
	listener := events.NewChangeListener(feed, refresher, hub, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})

	lifecycles := []interface{}{a.store, hub, listener}
	lifecycles = append(lifecycles, apt.LifecycleHooks{
		OnStop: func(context.Context) error { return publisher.Close() },
	})

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
