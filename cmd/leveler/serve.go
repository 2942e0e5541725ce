package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ChatSift/Social/config"
	"github.com/ChatSift/Social/internal/application/command"
	"github.com/ChatSift/Social/internal/application/eligibility"
	"github.com/ChatSift/Social/internal/application/query"
	"github.com/ChatSift/Social/internal/domain/shared"
	discordclient "github.com/ChatSift/Social/internal/infrastructure/external/discord"
	settingscache "github.com/ChatSift/Social/internal/infrastructure/persistence/cache"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/postgres"
	"github.com/ChatSift/Social/internal/infrastructure/telemetry"
	"github.com/ChatSift/Social/internal/interface/discord"
	httpiface "github.com/ChatSift/Social/internal/interface/http"
	"github.com/ChatSift/Social/internal/interface/http/handlers"
	"github.com/ChatSift/Social/pkg/logger"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the Discord gateway and award XP for guild messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending database migrations before starting")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config, log *slog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.RequireDiscord(); err != nil {
		return err
	}

	log.Info("starting leveler",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"strict_assertions", cfg.StrictAssertions(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Tracing
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:       cfg.Observability.TracingEndpoint,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		SampleRatio:    cfg.Observability.TracingSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := openPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if migrate {
		log.Info("running database migrations...")
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store, redisCheck, closeStore, err := openEligibilityStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	settingsRepo, err := settingscache.NewSettingsCache(
		postgres.NewSettingsRepository(dbConn),
		cfg.Leveling.SettingsCacheSize,
		cfg.Leveling.SettingsCacheTTL,
	)
	if err != nil {
		return fmt.Errorf("failed to create settings cache: %w", err)
	}
	progressRepo := postgres.NewProgressRepository(dbConn)
	rewardRepo := postgres.NewRewardRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// Discord
	// ─────────────────────────────────────────────────────────────────────────
	client, err := disgo.New(cfg.Discord.Token,
		bot.WithLogger(log.With(logger.Component("disgo"))),
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagChannels)),
	)
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}

	discordAPI := discordclient.NewClient(client.Rest(), discordclient.ClientConfig{Logger: log})

	// ─────────────────────────────────────────────────────────────────────────
	// Application
	// ─────────────────────────────────────────────────────────────────────────
	asserter := shared.NewAsserter(cfg.StrictAssertions(), log)
	tracker := eligibility.NewTracker(store, asserter, log)

	engine := command.NewProcessActivityHandler(command.ProcessActivityDeps{
		Settings:        settingsRepo,
		Progress:        progressRepo,
		Rewards:         rewardRepo,
		Channels:        postgres.NewChannelRepository(dbConn),
		RoleMultipliers: postgres.NewRoleMultiplierRepository(dbConn),
		Roles:           discordAPI,
		Notifier:        discordAPI,
		Eligibility:     tracker,
		Asserter:        asserter,
		Logger:          log,
	})

	listenerCfg := discord.DefaultListenerConfig()
	listenerCfg.Logger = log
	listener := discord.NewListener(engine, discord.NewCacheDirectory(client.Caches()), listenerCfg)
	client.AddEventListeners(listener.EventListener())

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.PingCheck(dbConn))
	if redisCheck != nil {
		health.AddCheck("redis", redisCheck)
	}
	health.AddAdvisoryCheck("discord", discordAPI.CheckAvailability)

	httpCfg := httpiface.DefaultConfig()
	httpCfg.Addr = cfg.HTTP.Addr
	httpServer := httpiface.NewServer(httpCfg, httpiface.Dependencies{
		Health: health,
		Levels: query.NewGetLevelHandler(settingsRepo, progressRepo, rewardRepo),
		Logger: log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Run
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)

	g.Go(func() error {
		log.Info("opening discord gateway...")
		if err := client.OpenGateway(gctx); err != nil {
			return fmt.Errorf("failed to open gateway: %w", err)
		}
		log.Info("leveler is running", "http_address", httpCfg.Addr)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error
		client.Close(shutdownCtx)
		if err := listener.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("listener: %w", err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown completed with errors", logger.Err(err))
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
}
