package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/alitagps/tk103/cli/receiver/broker"
	"github.com/alitagps/tk103/cli/receiver/config"
	"github.com/alitagps/tk103/cli/receiver/domain"
	"github.com/alitagps/tk103/cli/receiver/notify"
	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/server"
	"github.com/alitagps/tk103/cli/receiver/source"
	"github.com/alitagps/tk103/cli/receiver/storage"
	"github.com/alitagps/tk103/cli/receiver/types"
)

// shutdownGracePeriod bounds how long queued requests may keep draining
// after a shutdown is requested.
const shutdownGracePeriod = 50 * time.Second

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "path to the YAML config")
	flag.Parse()

	if configFilePath == "" {
		log.Fatal("Config path is not set, pass it with -c")
	}
	settings, err := config.New(configFilePath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	configureLogging(settings)

	if settings.MigrationsPath != "" {
		if err := applyMigrations(settings); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	primary, err := source.NewPostgres(settings.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to the primary store: %v", err)
	}
	defer primary.Close()

	repository := storage.NewRepository()
	if err := repository.LoadStorages(settings.Store); err != nil {
		log.Fatalf("Failed to initialize storages: %v", err)
	}
	defer repository.Close()

	requests := queue.NewRequests(settings.RequestQueueSize)
	events := queue.NewEvents(settings.MessageQueueSize)
	cache := domain.NewLastLocationCache()

	if settings.WarmCache {
		if err := cache.Warm(primary); err != nil {
			log.Warnf("Cache warm-up failed, starting cold: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := &domain.ProcessRequests{
		Requests: requests,
		Events:   events,
		Cache:    cache,
		Store:    repository,
	}

	var watcher *domain.WatchLiveness
	if settings.RequestLookupService {
		watcher = &domain.WatchLiveness{
			Cache:    cache,
			Source:   primary,
			Events:   events,
			Interval: settings.GetRequestLookupInterval(),
		}
	}

	if settings.Broker.Active {
		natsBroker, err := broker.Connect(settings.Broker.URL)
		if err != nil {
			log.Fatalf("Failed to connect to the broker: %v", err)
		}
		defer natsBroker.Close()
		processor.Broker = natsBroker
		if watcher != nil {
			watcher.Broker = natsBroker
		}
	}

	go processor.Run(ctx)

	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("Failed to start the liveness watch: %v", err)
		}
		defer watcher.Stop()
	}

	if settings.MessagingService {
		notifier := &notify.Notifier{Events: events, Mail: settings.Mail}
		go notifier.Run(ctx)
	} else {
		go logEvents(ctx, events)
	}

	srv := server.New(settings.GetListenAddress(), settings.GetEmptyConnTTL(), requests, events)
	if err := srv.Listen(); err != nil {
		log.Fatalf("Failed to start the server: %v", err)
	}
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	startup := types.Message{
		Type:       types.ServerStartup,
		Timestamp:  time.Now(),
		ServerAddr: settings.GetListenAddress(),
		DBAddr:     settings.GetDatabaseAddress(),
	}
	if err := events.Put(ctx, startup); err != nil {
		log.WithField("err", err).Warn("Failed to report startup")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case received := <-sig:
		log.Infof("Received %s, shutting down", received)
	case <-srv.Shutdown():
		log.Info("Shutdown command received, shutting down")
	}

	_ = srv.Stop()
	drainRequests(requests)
}

// drainRequests lets the processing loop finish queued frames before the
// deferred cancellation stops it, bounded by the grace period.
func drainRequests(requests *queue.Requests) {
	deadline := time.Now().Add(shutdownGracePeriod)
	for requests.Len() > 0 {
		if time.Now().After(deadline) {
			log.Warnf("Grace period expired with %d requests still queued", requests.Len())
			return
		}
		time.Sleep(time.Second)
	}
	log.Info("Request queue drained")
}

// logEvents keeps the event queue moving when the messaging service is
// disabled; a full queue would otherwise stall its producers.
func logEvents(ctx context.Context, events *queue.Events) {
	for {
		msg, err := events.Take(ctx)
		if err != nil {
			return
		}
		log.WithFields(log.Fields{"type": msg.Type, "text": msg.Text}).Info("System event")
	}
}

func configureLogging(settings config.Settings) {
	log.SetLevel(settings.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if settings.LogFilePath != "" {
		logDir := filepath.Dir(settings.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Failed to create the log directory: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   settings.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     settings.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

func applyMigrations(settings config.Settings) error {
	m, err := migrate.New(settings.MigrationsPath, settings.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("Migrations applied")
	return nil
}
