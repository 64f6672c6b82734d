package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/api"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/assets"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/collector"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/config"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/database"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/events"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/ingest"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/ratelimit"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/scheduler"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/tracker"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/trigger"
)

// exitInterrupted is the conventional exit code for SIGINT.
const exitInterrupted = 130

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler daemon",
	Long: `Run applies pending schema migrations, reloads the durable job
registry, and starts the tick loop and HTTP API.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().String("timezone", "UTC", "IANA timezone for cron evaluation")
	runCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = viper.BindPFlag("scheduler.timezone", runCmd.Flags().Lookup("timezone"))
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		viper.Set("logger.level", "debug")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations applied")

	jobRepo := database.NewJobRepository(db)
	execRepo := database.NewExecutionRepository(db)
	logRepo := database.NewCollectionLogRepository(db)
	assetRepo := database.NewAssetRepository(db)
	tsRepo := database.NewTimeSeriesRepository(db)

	var mirror events.Mirror
	if cfg.Redis.Addr != "" {
		redisMirror, mirrorErr := events.NewRedisMirror(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, log)
		if mirrorErr != nil {
			return fmt.Errorf("failed to connect redis event mirror: %w", mirrorErr)
		}
		defer redisMirror.Close()
		mirror = redisMirror
		log.Info("redis event mirror enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}
	bus := events.NewBus(mirror, log)
	defer bus.Close()

	limits := ratelimit.NewRegistry(cfg.Collector.RateLimitCalls, cfg.Collector.RateLimitPeriod)
	registry := collector.NewRegistry(cfg.Collector, log)

	engine := ingest.NewEngine(
		assets.NewManager(assetRepo, log),
		registry,
		tracker.New(tsRepo),
		limits,
		tsRepo,
		logRepo,
		cfg.Collector.Timeout,
		log,
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := scheduler.NewMetrics(promReg)

	evaluator := trigger.NewEvaluator(cfg.Location())
	sched := scheduler.New(
		jobRepo, execRepo, engine, evaluator, bus, metrics,
		cfg.Scheduler, cfg.Collector.Timeout, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	server := api.NewServer(api.Params{
		Config:     cfg.API,
		Scheduler:  sched,
		Logs:       logRepo,
		Collectors: registry,
		Bus:        bus,
		Registry:   promReg,
		Logger:     log,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		cancel()
		sched.Stop()
		return fmt.Errorf("api server failed: %w", err)
	case sig := <-signals:
		log.Info("shutting down", "signal", sig.String())
	}

	// A second signal aborts the graceful shutdown.
	go func() {
		<-signals
		log.Warn("forced shutdown")
		os.Exit(exitInterrupted)
	}()

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown failed", "error", err)
		os.Exit(exitInterrupted)
	}

	log.Info("shutdown complete")
	return nil
}
