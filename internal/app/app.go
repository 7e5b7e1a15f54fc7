// Package app wires configuration into the ingestion pipeline, the fallback
// engine, and the delivery worker.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/delivery"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/fallback"
	"NewsIngestor/internal/infrastructure/edgar"
	"NewsIngestor/internal/infrastructure/feed"
	"NewsIngestor/internal/infrastructure/rewriter"
	"NewsIngestor/internal/infrastructure/scraper"
	"NewsIngestor/internal/infrastructure/sink"
	"NewsIngestor/internal/infrastructure/storage"
	"NewsIngestor/internal/ingest"
	"NewsIngestor/internal/logging"
	"NewsIngestor/internal/ports"
	"NewsIngestor/internal/source"
	"NewsIngestor/internal/usecase"
)

// Application holds the assembled components for one batch-job invocation.
type Application struct {
	cfg        config.Config
	db         *sql.DB
	Logger     *slog.Logger
	Pipeline   *usecase.Pipeline
	Worker     *delivery.Worker
	Engine     *fallback.Engine
	Posts      ports.PostRepository
	Deliveries ports.DeliveryRepository
}

// New opens the database and builds all components.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	posts := storage.NewPostRepository(db)
	deliveries := storage.NewDeliveryRepository(db)

	httpClient := &http.Client{Timeout: cfg.Ingest.RequestTimeout.Std()}

	registry := source.NewRegistry()
	registry.Register(feed.NewRSSSource(httpClient))
	registry.Register(scraper.NewSiteSource(httpClient))
	registry.Register(edgar.NewFilingSource(httpClient))

	multiSource := source.NewMultiSource(registry, cfg.Sources, cfg.Ingest.MaxPerSource,
		logging.Component(baseLogger, "source"))

	gate := ingest.NewGate(posts, nil, logging.Component(baseLogger, "dedup"))

	preFilters := []ingest.PreFilter{
		ingest.NewCompanyRecency(posts, cfg.Ingest.CompanyRecencyDays, nil),
		ingest.NewTitleSimilarity(posts, cfg.Ingest.SimilarityWindow.Std(), cfg.Ingest.SimilarityCutoff, nil),
	}

	factory := delivery.NewFactory(delivery.FactoryOptions{
		SocialEnabled:     cfg.Social.Enabled,
		BuildWhenDisabled: cfg.Social.BuildWhenDisabled,
		AllowedOrigins:    allowedOrigins(cfg.Social.AllowedOrigins),
		SiteBaseURL:       cfg.Site.BaseURL,
		Hashtags:          cfg.Social.Hashtags,
	})

	var rw ports.Rewriter
	if cfg.Rewriter.APIKey != "" {
		rw = rewriter.NewOpenAIRewriter(cfg.Rewriter)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        multiSource,
		Posts:         posts,
		Deliveries:    deliveries,
		Gate:          gate,
		PreFilters:    preFilters,
		Rewriter:      rw,
		Factory:       factory,
		RetentionDays: cfg.Ingest.RetentionDays,
		Logger:        logging.Component(baseLogger, "pipeline"),
	})

	sinks := []ports.Sink{
		sink.NewRevalidateSink(cfg.Site.RevalidateURL, cfg.Site.RevalidateSecret, nil),
	}
	if cfg.Social.Enabled {
		sinks = append(sinks, sink.NewXSink(cfg.Social))
	}

	worker := delivery.NewWorker(deliveries, sinks, delivery.WorkerOptions{
		SendDelay:   cfg.Worker.SendDelay.Std(),
		SendTimeout: cfg.Worker.SendTimeout.Std(),
		Budget:      delivery.NewBudget(cfg.Social.PostsPerHour, cfg.Social.PostsPerDay, nil),
	}, logging.Component(baseLogger, "worker"))

	engine := fallback.NewEngine(posts, fallback.Options{
		Thresholds:      cfg.Fallback.Thresholds,
		ExclusionWindow: cfg.Fallback.ExclusionWindow.Std(),
		RetentionWindow: cfg.Fallback.RetentionWindow.Std(),
	}, logging.Component(baseLogger, "fallback"))

	return &Application{
		cfg:        cfg,
		db:         db,
		Logger:     baseLogger,
		Pipeline:   pipeline,
		Worker:     worker,
		Engine:     engine,
		Posts:      posts,
		Deliveries: deliveries,
	}, nil
}

// DB exposes the raw connection for migrations.
func (a *Application) DB() *sql.DB {
	return a.db
}

// WorkerBatchLimit returns the configured per-channel batch size.
func (a *Application) WorkerBatchLimit() int {
	return a.cfg.Worker.BatchLimit
}

// ReconcileWindow bounds the reconciliation sweep to recent posts.
func (a *Application) ReconcileWindow() time.Time {
	return time.Now().UTC().Add(-24 * time.Hour)
}

// Close releases the database connection.
func (a *Application) Close() error {
	return a.db.Close()
}

func allowedOrigins(values []string) []domain.OriginType {
	origins := make([]domain.OriginType, 0, len(values))
	for _, v := range values {
		origins = append(origins, domain.OriginType(v))
	}
	return origins
}
