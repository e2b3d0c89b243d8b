package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"

	"TrendIllustrator/internal/config"
	"TrendIllustrator/internal/imaging"
	"TrendIllustrator/internal/infrastructure/blobstore"
	"TrendIllustrator/internal/infrastructure/imagegen"
	"TrendIllustrator/internal/infrastructure/ingest"
	"TrendIllustrator/internal/infrastructure/llm"
	"TrendIllustrator/internal/infrastructure/scheduler"
	"TrendIllustrator/internal/infrastructure/storage"
	"TrendIllustrator/internal/infrastructure/telegram"
	"TrendIllustrator/internal/logging"
	"TrendIllustrator/internal/ports"
	"TrendIllustrator/internal/source"
	"TrendIllustrator/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
// Configuration and credential problems surface here, at startup; they are
// never retried per story.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := buildStore(ctx, cfg.Storage, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("build blob store: %w", err)
	}

	backend := imagegen.NewPollinationsBackend(
		cfg.Images.BackendURL,
		cfg.Images.Model,
		time.Duration(cfg.Images.TimeoutSeconds)*time.Second,
		baseLogger.With("component", "imagegen"),
	)

	engineLogger := baseLogger.With("component", "engine")
	validator := imaging.NewValidator(store, cfg.Images.MinBytes, engineLogger)
	engine := imaging.NewEngine(backend, store, validator, imaging.NewPromptBuilder(0, 0),
		imaging.EngineConfig{
			Width:      cfg.Images.Width,
			Height:     cfg.Images.Height,
			MaxRetries: cfg.Images.MaxRetries,
			BaseDelay:  time.Duration(cfg.Images.BaseDelaySeconds) * time.Second,
			MaxDelay:   time.Duration(cfg.Images.MaxDelaySeconds) * time.Second,
		},
		imagegen.Retryable,
		engineLogger,
	)
	selector := imaging.NewSelector(engine,
		time.Duration(cfg.Images.StoryDelaySeconds)*time.Second,
		baseLogger.With("component", "selector"))

	storySource, err := buildSource(ctx, cfg, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("build story source: %w", err)
	}

	var summarizer ports.Summarizer
	if cfg.Summarizer.APIKey != "" {
		summarizer = llm.NewSummarizer(cfg.Summarizer)
	}

	var repository ports.StoryRepository
	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		repository = storage.NewPostgresRepository(db)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(
			cfg.Notifications.Telegram.BotToken,
			cfg.Notifications.Telegram.ChatID,
		)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     storySource,
		Repository: repository,
		Summarizer: summarizer,
		Selector:   selector,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		TopN:       cfg.Images.TopN,
		Force:      cfg.Images.Force,
	})

	return &Application{cfg: cfg, pipeline: pipeline, db: db}, nil
}

// Run performs a single pipeline pass.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}
	return a.pipeline.Run(ctx, time.Now().UTC())
}

// RunScheduled executes passes on the configured interval until the context
// is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval())
	sched := usecase.NewScheduler(driver, a.pipeline)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sched.Stop(context.Background())
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		return blobstore.NewLocalStore(cfg.Local.Dir, cfg.Local.URLPrefix)
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return blobstore.NewS3Store(client, cfg.S3.Bucket, cfg.S3.PublicBaseURL,
			logger.With("component", "blobstore.s3"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.StorySource, error) {
	registry := source.NewRegistry()
	registry.Register(ingest.NewTrendPageSource(nil, logger.With("component", "source.trendpage")))

	for _, src := range cfg.Sources {
		if src.Kind != "youtube" {
			continue
		}
		yt, err := ingest.NewYouTubeSource(ctx, cfg.YouTube.APIKey, logger.With("component", "source.youtube"))
		if err != nil {
			return nil, err
		}
		registry.Register(yt)
		break
	}

	return ingest.NewStrategySource(registry, cfg.Sources, logger.With("component", "source")), nil
}
