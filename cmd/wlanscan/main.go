package main

//	@title			wlanscan API
//	@version		0.1.0
//	@description	WLAN scan orchestration and network table API.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/wlanscan/internal/config"
	"github.com/HerbHall/wlanscan/internal/event"
	"github.com/HerbHall/wlanscan/internal/history"
	"github.com/HerbHall/wlanscan/internal/mqtt"
	"github.com/HerbHall/wlanscan/internal/registry"
	"github.com/HerbHall/wlanscan/internal/scan"
	"github.com/HerbHall/wlanscan/internal/server"
	"github.com/HerbHall/wlanscan/internal/store"
	"github.com/HerbHall/wlanscan/internal/version"
	"github.com/HerbHall/wlanscan/internal/webhook"
	"github.com/HerbHall/wlanscan/internal/ws"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "scan":
			os.Exit(runScan(os.Args[2:], os.Stdout))
		case "version":
			fmt.Println(version.Info())
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wlanscan: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	// Load configuration (before logger, so log level/format can be configured).
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	v := cfg.Viper()

	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("wlanscan server starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	dbPath := v.GetString("database.path")
	db, err := store.New(dbPath, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vc, err := db.CheckVersion(ctx, version.Short())
	if err != nil {
		return err
	}
	if vc.Upgraded {
		logger.Info("database upgraded",
			zap.String("component", "database"),
			zap.String("from", vc.Previous),
			zap.String("to", vc.Current),
		)
	}
	logger.Info("database initialized", zap.String("component", "database"), zap.String("path", dbPath))

	bus := event.NewBus(logger.Named("event"))

	// Register all plugins (compile-time composition).
	reg := registry.New(logger.Named("registry"))
	for _, m := range []plugin.Plugin{
		scan.New(),
		history.New(),
		mqtt.New(),
		webhook.New(),
	} {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation: %w", err)
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		return fmt.Errorf("initialize plugins: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start plugins: %w", err)
	}

	var wsCfg ws.Config
	if err := cfg.Sub("ws").Unmarshal(&wsCfg); err != nil {
		return fmt.Errorf("ws config: %w", err)
	}
	wsHandler := ws.NewHandler(wsCfg, bus, logger.Named("ws"))
	defer wsHandler.Close()

	srvCfg := server.DefaultConfig()
	if err := cfg.Sub("server").Unmarshal(&srvCfg); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(srvCfg, reg, logger, readyCheck, wsHandler)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("wlanscan server ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("wlanscan server stopped")
	return nil
}
