package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"groundlink/internal/api"
	"groundlink/pkg/autostart"
	"groundlink/pkg/config"
	"groundlink/pkg/db"
	"groundlink/pkg/logging"
	"groundlink/pkg/probe"
	"groundlink/pkg/store"
	"groundlink/pkg/tracker"
	"groundlink/pkg/vehicle"
	"groundlink/pkg/version"
)

const defaultConfigPath = "configs/groundlink.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	// .env is optional; variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("groundlink started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if n, err := dbConn.PruneEvents(time.Duration(appCfg.DB.EventHistory)); err != nil {
		slog.Warn("Failed to prune command events", "error", err)
	} else if n > 0 {
		slog.Info("Pruned command events", "count", n)
	}

	tr := tracker.New()
	prov := config.NewProvider(appCfg, st)

	// Startup Probes
	probes := []probe.Probe{
		probe.Database(dbConn.DB),
		probe.LinkAddress(prov.LinkProvider(ctx), prov.LinkAddress(ctx)),
		probe.WritableDir("Log directory", appCfg.Log.Server.Path),
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	transport, err := initializeTransport(ctx, prov)
	if err != nil {
		return fmt.Errorf("failed to initialize link transport: %w", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			slog.Warn("Failed to close link transport", "error", err)
		}
	}()

	opts := linkOptions(ctx, prov)
	opts.Tracker = tr
	opts.Journal = st
	link := vehicle.New(transport, opts)
	if err := link.Start(); err != nil {
		return fmt.Errorf("failed to start vehicle link: %w", err)
	}
	defer link.Stop()

	// Cancelled before the link stops so the sequencer never races Stop
	autoCtx, cancelAuto := context.WithCancel(ctx)
	defer cancelAuto()
	if prov.AutostartEnabled(ctx) {
		go runAutostart(autoCtx, link, prov)
	}

	return runServer(ctx, prov, link, tr, st)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func runAutostart(ctx context.Context, link *vehicle.Link, prov config.Provider) {
	a := prov.AppConfig().Autostart
	seq := autostart.New(link, autostart.Config{
		TakeoffAltitude: prov.TakeoffAltitude(ctx),
		HeartbeatPoll:   time.Duration(a.HeartbeatPoll),
		ArmedPoll:       time.Duration(a.ArmedPoll),
		ArmedTimeout:    time.Duration(a.ArmedTimeout),
	})
	if err := seq.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Autostart failed", "error", err)
	}
}

func runServer(ctx context.Context, prov config.Provider, link *vehicle.Link, tr *tracker.Tracker, st store.Store) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	// Tolerance overrides apply to the running navigator; link overrides wait for a restart
	onConfigChange := func(c context.Context) {
		link.Navigator().SetTolerances(prov.HorizontalTolerance(c), prov.VerticalTolerance(c))
	}

	srv := api.NewServer(prov.AppConfig().Server.Address,
		api.NewVehicleHandler(link),
		api.NewWaypointHandler(link),
		api.NewPIDHandler(link),
		api.NewNotifyHandler(link),
		api.NewStatsHandler(tr, link),
		api.NewEventsHandler(st),
		api.NewConfigHandler(st, prov, onConfigChange),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
