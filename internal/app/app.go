// Package app wires configuration into a running compliance engine and
// task manager. The HTTP server, the MCP server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/db"
	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
)

// Components are the model-facing parts of an App. Tests supply fakes.
type Components struct {
	Embedder  index.Embedder
	Reasoner  service.Reasoner
	Extractor parser.Extractor
	// Store caches built indexes. Nil disables caching.
	Store index.Store
}

// App holds every long-lived service.
type App struct {
	Tasks   *service.TaskManager
	Engine  *service.Engine
	Catalog *parser.Catalog
	Results *service.FileSink
	Metrics *metrics.Collector

	db *db.Client
}

// New connects to the configured providers and, when enabled, the SurrealDB
// index store.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	embedder, err := llm.NewEmbedder(ctx, cfg, mc)
	if err != nil {
		return nil, err
	}
	model, err := llm.NewModel(ctx, cfg, mc)
	if err != nil {
		return nil, err
	}

	store, dbClient, err := newIndexStore(ctx, cfg, embedder.Model(), logger)
	if err != nil {
		return nil, err
	}

	a := Assemble(cfg, Components{
		Embedder:  embedder,
		Reasoner:  model,
		Extractor: parser.Dispatcher{PDF: pdfExtractor(cfg.PDFToTextPath)},
		Store:     store,
	}, mc, logger)
	a.db = dbClient
	return a, nil
}

// newIndexStore builds the in-memory index cache, backed by SurrealDB when
// configured.
func newIndexStore(ctx context.Context, cfg config.Config, model string, logger *slog.Logger) (index.Store, *db.Client, error) {
	var local index.Store
	if cfg.IndexCacheSize > 0 {
		mem, err := index.NewMemoryCache(cfg.IndexCacheSize)
		if err != nil {
			return nil, nil, err
		}
		local = mem
	}
	if cfg.IndexStore != config.IndexStoreSurrealDB {
		return local, nil, nil
	}

	client, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect index store: %w", err)
	}
	if err := client.InitSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	shared := db.NewIndexStore(client, model)
	if local == nil {
		return shared, client, nil
	}
	return &index.Tiered{Local: local, Shared: shared}, client, nil
}

// Assemble builds the engine and task manager around the given components.
func Assemble(cfg config.Config, c Components, mc *metrics.Collector, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	extractor := c.Extractor
	if extractor == nil {
		extractor = parser.Dispatcher{PDF: pdfExtractor(cfg.PDFToTextPath)}
	}
	retry := llm.RetryPolicyFromConfig(cfg)

	builder := index.NewBuilder(extractor, c.Embedder, index.BuilderOptions{
		Chunking:    parser.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
		Retry:       retry,
		Cache:       c.Store,
		Metrics:     mc,
		Logger:      logger,
	})
	evaluator := service.NewEvaluator(c.Reasoner, retry, logger)
	engine := service.NewEngine(builder, evaluator, service.EngineOptions{
		RetrievalK:             cfg.RetrievalK,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		Retry:                  retry,
		Metrics:                mc,
		Logger:                 logger,
	})

	results := service.NewFileSink(cfg.ResultsDir)
	tasks := service.NewTaskManager(engine, service.TaskManagerOptions{
		Retention:        cfg.TaskRetention,
		JanitorInterval:  janitorInterval(cfg.TaskRetention),
		SubscriberBuffer: cfg.SubscriberBuffer,
		Sink:             results,
		Metrics:          mc,
		Logger:           logger,
	})

	return &App{
		Tasks:   tasks,
		Engine:  engine,
		Catalog: parser.NewCatalog(cfg.ChecklistsDir),
		Results: results,
		Metrics: mc,
	}
}

// pdfExtractor prefers pdftotext and falls back to the built-in reader
// when the binary is missing. An empty path uses the built-in reader only.
func pdfExtractor(binary string) parser.Extractor {
	if binary == "" {
		return parser.PDFExtractor{}
	}
	return parser.NewPDFToTextExtractor(binary)
}

// janitorInterval prunes a few times per retention period and at least
// once a minute.
func janitorInterval(retention time.Duration) time.Duration {
	if retention <= 0 {
		return 0
	}
	return min(retention/4, time.Minute)
}

// Close stops running tasks and closes the index store connection.
func (a *App) Close(ctx context.Context) error {
	a.Tasks.Close()
	if a.db != nil {
		return a.db.Close(ctx)
	}
	return nil
}

// WipeData deletes all cached indexes from SurrealDB. Use for testing only.
func (a *App) WipeData(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.WipeData(ctx)
}
