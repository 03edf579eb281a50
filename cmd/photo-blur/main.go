package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/acquire"
	blurhandler "github.com/aliskhannn/photo-blur/internal/api/handlers/blur"
	"github.com/aliskhannn/photo-blur/internal/api/router"
	"github.com/aliskhannn/photo-blur/internal/api/server"
	"github.com/aliskhannn/photo-blur/internal/config"
	"github.com/aliskhannn/photo-blur/internal/dispatcher"
	"github.com/aliskhannn/photo-blur/internal/infra/kafka/consumer"
	"github.com/aliskhannn/photo-blur/internal/infra/kafka/producer"
	workmsg "github.com/aliskhannn/photo-blur/internal/kafka/handlers/work"
	"github.com/aliskhannn/photo-blur/internal/metrics"
	"github.com/aliskhannn/photo-blur/internal/notify"
	"github.com/aliskhannn/photo-blur/internal/permission"
	"github.com/aliskhannn/photo-blur/internal/processor"
	workrepo "github.com/aliskhannn/photo-blur/internal/repository/work"
	blursvc "github.com/aliskhannn/photo-blur/internal/service/blur"
	"github.com/aliskhannn/photo-blur/internal/storage/file"
	"github.com/aliskhannn/photo-blur/internal/storage/object"
	"github.com/aliskhannn/photo-blur/internal/worker"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Retry strategy for Kafka and object storage calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	grants := permission.NewGrants(cfg.Permissions...)

	// Private cache directory holding the selected and blurred images.
	cache, err := file.NewStorage(cfg.Cache.Dir)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open cache directory")
	}

	recorder, err := metrics.NewRecorder("", prometheus.NewRegistry())
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	// Content exposure for the "View Image" action.
	var exposer interface {
		Expose(ctx context.Context, path string) (string, error)
	}
	switch cfg.Notification.Exposer {
	case "object":
		storage, err := object.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		exposer = notify.NewObjectExposer(storage, cfg.Storage.PresignExpiry, strategy)
	default:
		exposer = notify.NewHTTPExposer(cfg.Server.PublicURL, cache.Dir())
	}

	// Where notifications end up.
	var closers []func() error
	var poster interface {
		Post(ctx context.Context, n notify.Notification) error
	}
	switch cfg.Notification.Poster {
	case "kafka":
		np := producer.New(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, strategy)
		closers = append(closers, np.Close)
		poster = notify.NewQueuePoster(np)
	default:
		poster = notify.LogPoster{}
	}

	presenter := notify.NewPresenter(poster, exposer, grants, cfg.Notification.Message)
	blurWorker := worker.NewBlurWorker(processor.New(cfg.Blur.Factor), presenter, cfg.Blur.AttachImage)

	// Work dispatcher, local or backed by Kafka.
	opts := []dispatcher.Option{
		dispatcher.WithWorkers(cfg.Dispatcher.Workers),
		dispatcher.WithQueueSize(cfg.Dispatcher.QueueSize),
		dispatcher.WithRecorder(recorder),
	}
	useKafka := cfg.Dispatcher.Transport == "kafka"
	if useKafka {
		wp := producer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, strategy)
		closers = append(closers, wp.Close)
		opts = append(opts, dispatcher.WithPublisher(wp))
	}
	d := dispatcher.New(blurWorker, workrepo.NewRepository(), opts...)

	acquirer := acquire.New(nil, cache, grants)
	if cfg.Camera.SnapshotURL != "" {
		acquirer = acquire.New(acquire.NewHTTPCamera(cfg.Camera.SnapshotURL, cfg.Camera.Timeout), cache, grants)
	}

	service := blursvc.NewService(acquirer, d, cache)

	var wg sync.WaitGroup

	// Start the dispatcher workers and the result watcher.
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.Run(ctx); err != nil {
			zlog.Logger.Err(err).Msg("dispatcher stopped with error")
		}
	}()
	go func() {
		defer wg.Done()
		service.Watch(ctx)
	}()

	// Kafka consumer executing published work requests.
	if useKafka {
		c := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, strategy, workmsg.NewRequestedHandler(d))
		closers = append(closers, c.Client.Close)

		wg.Add(1)
		go c.Consume(ctx, &wg)
	}

	// Start HTTP server in a separate goroutine.
	r := router.Setup(blurhandler.NewHandler(service), recorder.Handler())
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	zlog.Logger.Info().
		Str("addr", cfg.Server.HTTPPort).
		Str("transport", cfg.Dispatcher.Transport).
		Msg("photo-blur started")

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for background goroutines to finish.
	wg.Wait()

	// Close Kafka clients.
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka client")
		}
	}
}
