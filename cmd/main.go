package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	"pickupBoard/cmd/buildCFG"
	"pickupBoard/internal/api/api"
	"pickupBoard/internal/auth"
	"pickupBoard/internal/automation"
	rabbitReader "pickupBoard/internal/consumerWorker"
	"pickupBoard/internal/mailer"
	"pickupBoard/internal/notify"
	"pickupBoard/internal/rabbit"
	"pickupBoard/internal/repo"
	"pickupBoard/internal/service"
	"pickupBoard/internal/storage"
	"pickupBoard/internal/store"
	"pickupBoard/internal/toggle"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "PICKUP"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	storeCfg, err := buildCFG.BuildStoreConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store config")
	}
	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth config")
	}
	autoCfg, err := buildCFG.BuildAutomationConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build automation config")
	}
	cacheCfg := buildCFG.BuildCacheConfig(cfg, &log)

	storeClient := store.NewClient(storeCfg.Config, &log)
	repository, err := repo.NewRepository(storeClient, storeCfg.Location, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cacheCfg.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("cannot create cache directory")
	}
	bolt, err := storage.NewBoltStorage(cacheCfg.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache")
	}
	defer bolt.Close()
	if cacheCfg.BlastMaxAge > 0 {
		if err := bolt.CleanupOldBlasts(time.Now().Add(-cacheCfg.BlastMaxAge)); err != nil {
			log.Warn().Err(err).Msg("failed to clean up old blasts")
		}
	}

	autoClient := automation.NewClient(autoCfg.BaseURL, autoCfg.Timeout, &log)
	autoCreds := auth.NewStaticProvider(autoCfg.Token)
	templates := automation.NewTemplates(autoClient, bolt, cacheCfg.TemplateTTL, &log)

	notifiers := notify.Multi{notify.NewLog(&log)}
	notifyCfg, err := buildCFG.BuildRabbitConfig(cfg, &log, "rabbit.notifications", false)
	if err == nil {
		notifyRMQ, err := rabbit.NewRabbit(notifyCfg, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect notifications exchange")
		}
		defer notifyRMQ.Close()
		notifiers = append(notifiers, notify.NewBroker(notifyRMQ, &log))
	} else {
		log.Warn().Err(err).Msg("notifications exchange disabled")
	}

	var (
		blastQueue  rabbit.Publisher
		blastReader *rabbitReader.Reader
	)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	blastCfg, err := buildCFG.BuildRabbitConfig(cfg, &log, "rabbit.blasts", true)
	if err == nil {
		blastRMQ, err := rabbit.NewRabbit(blastCfg, &log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect blast exchange")
		}
		defer blastRMQ.Close()
		blastQueue = blastRMQ

		blastReader = rabbitReader.NewReader(blastRMQ, autoClient, bolt, autoCreds, &log)
		blastReader.Start(workerCtx)
	} else {
		log.Warn().Err(err).Msg("recruitment blasts disabled")
	}

	var mail service.Mailer
	if mailCfg := buildCFG.BuildMailConfig(cfg, &log); mailCfg.Host != "" {
		mail = mailer.New(mailCfg, &log)
	}

	serviceInstance := service.NewService(service.Deps{
		Repo:         repository,
		Log:          &log,
		Notifier:     toggle.Notifier(notifiers),
		Templates:    templates,
		Blasts:       bolt,
		BlastQueue:   blastQueue,
		Automation:   autoCreds,
		BlastWebhook: autoCfg.BlastWebhook,
		Mailer:       mail,
	})
	app := api.NewRouters(&api.Routers{
		Service:  serviceInstance,
		Verifier: auth.NewVerifier(authCfg.Secret, authCfg.Issuer),
		Creds:    auth.NewStaticProvider(authCfg.StoreToken),
	})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := app.Run(":" + serverCfg.Port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	cancelWorkers()
	if blastReader != nil {
		blastReader.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if closer, ok := interface{}(app).(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			log.Error().Msgf("Error shutting down server: %v", err)
		}
	}
	log.Info().Msg("Shutdown complete")
}
