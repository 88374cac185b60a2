package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/pressgen/pressgen/internal/queue"
	"github.com/pressgen/pressgen/internal/services/imagen"
	"github.com/pressgen/pressgen/internal/services/llm"
	"github.com/pressgen/pressgen/internal/services/wordpress"
	badgerstorage "github.com/pressgen/pressgen/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config      *common.Config
	Logger      arbor.ILogger
	DB          *badgerstorage.BadgerDB
	TaskStorage interfaces.TaskStorage
	Generator   interfaces.ContentGenerator
	Images      interfaces.ImageGenerator
	Publisher   interfaces.Publisher
	Notifier    interfaces.Notifier
	Dispatcher  *queue.Dispatcher
	Stats       *queue.StatsReporter
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Storage layer
	db, err := badgerstorage.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.TaskStorage = badgerstorage.NewTaskStorage(db, logger)
	logger.Debug().
		Str("storage", "badger").
		Str("path", cfg.Storage.Badger.Path).
		Msg("Storage layer initialized")

	// Content generation
	app.Generator, err = llm.NewClaudeGenerator(&cfg.Claude, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize content generator: %w", err)
	}

	// Featured images are best effort: run without them when the Imagen
	// service cannot start
	if cfg.Imagen.APIKey == "" {
		logger.Warn().Msg("No Gemini API key configured - posts will publish without featured images")
	} else {
		images, err := imagen.NewService(context.Background(), &cfg.Imagen, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize image service - posts will publish without featured images")
		} else {
			app.Images = images
		}
	}

	// WordPress publisher
	wpTimeout := parseDuration(cfg.WordPress.Timeout, wordpress.DefaultTimeout)
	app.Publisher = wordpress.NewClient(
		cfg.WordPress.APIURL,
		cfg.WordPress.User,
		cfg.WordPress.AppPassword,
		wordpress.WithLogger(logger),
		wordpress.WithTimeout(wpTimeout),
		wordpress.WithRateLimit(cfg.WordPress.RateLimit),
	)
	logger.Debug().
		Str("api_url", cfg.WordPress.APIURL).
		Dur("timeout", wpTimeout).
		Msg("WordPress client initialized")

	// Callback delivery reuses the WordPress application password; the
	// plugin's callback endpoint authenticates the same way
	app.Notifier = queue.NewHTTPNotifier(
		cfg.WordPress.User,
		cfg.WordPress.AppPassword,
		logger,
		queue.WithNotifierTimeout(parseDuration(cfg.Queue.CallbackTimeout, queue.DefaultCallbackTimeout)),
	)

	// Dispatcher and pipeline
	app.Dispatcher = queue.NewDispatcher(
		app.TaskStorage,
		app.Notifier,
		logger,
		parseDuration(cfg.Queue.PollInterval, 30*time.Second),
		cfg.Queue.BatchLimit,
		cfg.Queue.MaxTaskRetries,
	)
	app.Dispatcher.RegisterPipeline(queue.NewContentPipeline(app.Generator, app.Images, app.Publisher, logger))

	if cfg.Stats.Enabled {
		app.Stats = queue.NewStatsReporter(app.TaskStorage, logger, cfg.Stats.Schedule)
	}

	logger.Info().
		Str("task_type", string(models.TaskTypeGenerateContent)).
		Bool("images_enabled", app.Images != nil).
		Msg("Application initialization complete")

	return app, nil
}

// Start starts the background components.
func (a *App) Start() {
	a.Dispatcher.Start()

	if a.Stats != nil {
		if err := a.Stats.Start(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to start stats reporter")
		}
	}
}

// Close stops background work and closes all application resources.
func (a *App) Close() error {
	if a.Stats != nil {
		a.Stats.Stop()
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
