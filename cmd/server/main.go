package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/vidgrab/api"
	"github.com/yourusername/vidgrab/internal/app"
	"github.com/yourusername/vidgrab/internal/bot"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/infrastructure"
	"github.com/yourusername/vidgrab/internal/messages"
	"github.com/yourusername/vidgrab/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vidgrab-server",
	Short: "Vidgrab - Telegram video download bot",
	Long:  `Runs the Telegram bot, the download workers and the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return run(config)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(config *domain.Config) error {
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// queue and error categories, one file per day
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize multi-logger: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting vidgrab",
		zap.Int("workers", config.Worker.Count),
		zap.Duration("retention", config.Worker.Retention),
		zap.String("base_dir", config.Download.BaseDir))

	store, err := infrastructure.NewFSArtifactStore(afero.NewOsFs(),
		config.Download.StagingDir(), config.Download.ArtifactsDir())
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	cache := infrastructure.NewRedisCache(&config.Cache)
	defer cache.Close()
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		log.Warn("Redis is not reachable yet", zap.Error(err))
	}
	pingCancel()

	var journal domain.JobRepository
	if config.Journal.Enabled {
		repo, err := infrastructure.NewSQLiteJobRepository(config.Journal.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize journal: %w", err)
		}
		defer repo.Close()

		interrupted, err := repo.FailInterrupted()
		if err != nil {
			log.Warn("Failed to mark interrupted jobs", zap.Error(err))
		} else if interrupted > 0 {
			log.Info("Marked interrupted jobs as failed", zap.Int64("count", interrupted))
		}
		journal = repo
	}

	botAPI, err := infrastructure.NewBotAPI(&config.Bot)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	log.Info("Authorized on Telegram", zap.String("account", botAPI.Self.UserName))

	catalog := messages.NewCatalog(config.Bot.Language)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(reg)

	loop := app.NewEventLoop(log.Named("loop"))
	notifier := app.NewAsyncNotifier(loop,
		infrastructure.NewTelegramNotifier(botAPI, catalog, infrastructure.MediaPaths{
			LocalMode:     config.Bot.LocalMode,
			LocalFilesDir: config.Bot.LocalFilesDir,
			ArtifactsDir:  config.Download.ArtifactsDir(),
		}, log.Named("telegram")),
		config.Worker.NotifyTimeout, log.Named("notifier"), metrics)
	reporter := app.NewProgressReporter(notifier, catalog, config.Worker.ProgressEvery, log.Named("progress"), metrics)
	deleter := app.NewDeletionScheduler(loop, store, nil, log.Named("deleter"), multiLog, metrics)

	pool := app.NewWorkerPool(app.PoolDeps{
		Cache:       cache,
		Store:       store,
		Fetcher:     infrastructure.NewYTDLPFetcher(&config.Download, multiLog),
		Notifier:    notifier,
		Reporter:    reporter,
		Deleter:     deleter,
		Catalog:     catalog,
		Repo:        journal,
		Logger:      log.Named("pool"),
		MultiLogger: multiLog,
		Metrics:     metrics,
	}, app.PoolConfig{
		Count:     config.Worker.Count,
		Retention: config.Worker.Retention,
	})
	metrics.RegisterQueueDepth(reg, pool.Queue(), loop)
	queueMgr := app.NewQueueManager(pool, deleter, journal)

	janitor, err := app.NewJanitor(store, config.Worker.SweepSchedule, config.Worker.MaxArtifactAge, log.Named("janitor"), metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize janitor: %w", err)
	}

	extractor := infrastructure.NewYTDLPExtractor(config.Download.YTDLPBinary, cache, config.Cache.InfoTTL, log.Named("extractor"))
	handler := bot.NewHandler(botAPI, extractor, cache, notifier, queueMgr, catalog, bot.Config{
		AllowedServices: config.Bot.AllowedServices,
		ServiceAliases:  config.Bot.ServiceAliases,
		LocatorTTL:      config.Cache.LocatorTTL,
	}, log.Named("bot"))

	// the loop outlives the workers so their last notifications can be posted
	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()
	go loop.Run(loopCtx)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	janitor.Start()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = config.Bot.PollTimeout
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		handler.Run(ctx, botAPI.GetUpdatesChan(updateConfig))
	}()

	var server *http.Server
	serverErr := make(chan error, 1)
	if config.Server.Enabled {
		addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
		server = &http.Server{
			Addr:    addr,
			Handler: api.SetupRouter(queueMgr, notifier, catalog, cache, reg, log.Named("http"), multiLog),
		}
		go func() {
			log.Info("HTTP server listening", zap.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	log.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	botAPI.StopReceivingUpdates()
	cancel()
	<-botDone

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
	}

	janitor.Stop()

	workersDone := make(chan struct{})
	go func() {
		pool.Wait()
		close(workersDone)
	}()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn("Workers did not stop in time")
	}

	// deliver the workers' last notifications, then drop pending deletions;
	// the janitor sweeps leftovers on next start
	if err := loop.Drain(shutdownCtx); err != nil {
		log.Warn("Notifications left undelivered", zap.Int("pending", loop.Len()), zap.Error(err))
	}
	loop.Stop()
	<-loop.Done()

	log.Info("Server exited")
	return nil
}
