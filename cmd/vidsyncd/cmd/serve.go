package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidsyncd/vidsyncd/internal/adapters"
	"github.com/vidsyncd/vidsyncd/internal/assets"
	"github.com/vidsyncd/vidsyncd/internal/config"
	"github.com/vidsyncd/vidsyncd/internal/control"
	"github.com/vidsyncd/vidsyncd/internal/control/handlers"
	"github.com/vidsyncd/vidsyncd/internal/danmaku"
	"github.com/vidsyncd/vidsyncd/internal/database"
	"github.com/vidsyncd/vidsyncd/internal/database/migrations"
	"github.com/vidsyncd/vidsyncd/internal/ffmpeg"
	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/observability"
	"github.com/vidsyncd/vidsyncd/internal/pipeline"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/ratelimiter"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
	"github.com/vidsyncd/vidsyncd/internal/sidecar"
	"github.com/vidsyncd/vidsyncd/internal/startup"
	"github.com/vidsyncd/vidsyncd/internal/storage"
	"github.com/vidsyncd/vidsyncd/internal/version"
	"github.com/vidsyncd/vidsyncd/pkg/httpclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	Long: `Run vidsyncd as a long-lived daemon.

On every cron tick (and once immediately for any source that missed a tick
while the daemon was down) it enumerates one source's remote listing,
upserts new videos and pages, and drives each through the asset/sidecar/
danmaku pipeline until every task bit is set. The admin API exposes source
CRUD, manual refresh/pause/resume, and per-item retry resets.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("admin-host", "127.0.0.1", "Admin API bind host")
	serveCmd.Flags().Int("admin-port", 8980, "Admin API bind port")
	serveCmd.Flags().String("database", "vidsyncd.db", "Database file path")
	serveCmd.Flags().String("data-dir", "./data", "Base directory videos/pages are saved under")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("admin-host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("admin-port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)

	orphansRemoved, err := startup.CleanupSystemTempDirs(logger)
	if err != nil {
		logger.Warn("failed to clean orphaned temp directories", slog.Any("error", err))
	} else if orphansRemoved > 0 {
		logger.Info("cleaned orphaned temp directories on startup", slog.Int("removed_count", orphansRemoved))
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	favoriteRepo := repository.NewSourceFavoriteRepository(db.DB)
	collectionRepo := repository.NewSourceCollectionRepository(db.DB)
	submissionRepo := repository.NewSourceSubmissionRepository(db.DB)
	watchLaterRepo := repository.NewSourceWatchLaterRepository(db.DB)
	bangumiRepo := repository.NewSourceBangumiRepository(db.DB)
	videoRepo := repository.NewVideoRepository(db.DB)
	pageRepo := repository.NewPageRepository(db.DB)
	jobRepo := repository.NewJobRepository(db.DB)
	credentialRepo := repository.NewCredentialRepository(db.DB)

	sandbox, err := storage.NewSandbox(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing storage sandbox: %w", err)
	}

	cred, err := credentialRepo.Get(context.Background())
	if err != nil {
		return fmt.Errorf("loading stored credential: %w", err)
	}
	if cred == nil {
		logger.Warn("no credential configured yet; signed requests will fail until one is added")
	}

	bucket := ratelimiter.NewBucket(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer bucket.Stop()

	cbManager := httpclient.NewCircuitBreakerManager(nil).WithLogger(logger)
	clientFactory := httpclient.NewClientFactory(cbManager).WithLogger(logger)

	navFetcher := platform.NewNavWbiFetcher(httpclient.NewWithDefaults().StandardClient())
	client, err := platform.New(clientFactory, navFetcher, cfg.Credential.WbiKeyTTL, cfg.Credential.BiliTicketSecret, cred, bucket)
	if err != nil {
		return fmt.Errorf("initializing platform client: %w", err)
	}

	registry := adapters.NewRegistry(
		adapters.NewFavoriteAdapter(),
		adapters.NewCollectionAdapter(),
		adapters.NewSubmissionAdapter(),
		adapters.NewWatchLaterAdapter(),
		adapters.NewBangumiAdapter(),
	)

	ffmpegPath, probePath := cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath
	if ffmpegPath == "" || probePath == "" {
		info, derr := ffmpeg.NewBinaryDetector().Detect(context.Background())
		if derr != nil {
			return fmt.Errorf("detecting ffmpeg binary: %w", derr)
		}
		if ffmpegPath == "" {
			ffmpegPath = info.FFmpegPath
		}
		if probePath == "" {
			probePath = info.FFprobePath
		}
		logger.Info("detected ffmpeg binaries",
			slog.String("ffmpeg_path", ffmpegPath), slog.String("ffprobe_path", probePath),
			slog.String("version", info.Version))
	}

	assetFetcher := assets.NewFetcher(ffmpegPath, probePath)
	sidecarGen := sidecar.NewGenerator()
	danmakuFetcher := danmaku.NewFetcher()

	videoTasks := pipeline.NewVideoTaskSet(assetFetcher, sidecarGen, assetFetcher, sidecarGen, sidecarGen, assetFetcher)
	pageTasks := pipeline.NewPageTaskSet(assetFetcher, assetFetcher, sidecarGen, danmakuFetcher, sidecarGen)
	videoPipeline := pipeline.NewVideoPipeline(videoTasks, pageTasks, videoRepo, pageRepo, sandbox, cfg.Download.PageConcurrency).
		WithLogger(logger)

	syncService := pipeline.NewService(registry, client, pipeline.SourceRepos{
		Favorite:   favoriteRepo,
		Collection: collectionRepo,
		Submission: submissionRepo,
		WatchLater: watchLaterRepo,
		Bangumi:    bangumiRepo,
	}, videoRepo, videoPipeline, cfg.Download.VideoConcurrency).WithLogger(logger)

	sched := scheduler.NewScheduler(jobRepo, favoriteRepo, collectionRepo, submissionRepo, watchLaterRepo, bangumiRepo).
		WithLogger(logger)

	executor := scheduler.NewExecutor(jobRepo).WithLogger(logger)
	executor.RegisterHandler(models.JobTypeSourceScan, scheduler.NewSourceScanHandler(syncService).WithLogger(logger))

	runner := scheduler.NewRunner(jobRepo, executor).WithLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("starting job runner: %w", err)
	}
	if cfg.Scheduler.CatchupMissedRuns {
		if n, err := sched.CatchupMissedRuns(ctx); err != nil {
			logger.Warn("catch-up scan failed", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("queued catch-up scans for sources missed while the daemon was down", slog.Int("count", n))
		}
	}

	serverConfig := control.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := control.NewServer(serverConfig, logger, version.Version)

	handlers.NewFavoriteHandler(favoriteRepo, sched).Register(server.API())
	handlers.NewCollectionHandler(collectionRepo, sched).Register(server.API())
	handlers.NewSubmissionHandler(submissionRepo, sched).Register(server.API())
	handlers.NewWatchLaterHandler(watchLaterRepo, sched).Register(server.API())
	handlers.NewBangumiHandler(bangumiRepo, sched).Register(server.API())
	handlers.NewSystemHandler(jobRepo, sched, runner).Register(server.API())
	handlers.NewControlHandler(sched, runner, favoriteRepo, collectionRepo, submissionRepo, watchLaterRepo, bangumiRepo, videoRepo, pageRepo).
		Register(server.API())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		sched.Stop()
		runner.Stop()
		cancel()
	}()

	logger.Info("starting vidsyncd",
		slog.String("admin_address", fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
