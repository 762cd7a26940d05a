package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"datachat/agent"
	"datachat/chart"
	"datachat/config"
	"datachat/connection"
	"datachat/dbpool"
	"datachat/logger"
	"datachat/query"
	dbschema "datachat/schema"
	"datachat/server"
	"datachat/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "datachat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger := logger.NewLogger()
	if err := appLogger.Init(cfg.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer appLogger.Close()
	log := appLogger.Log

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbm := dbpool.New(log)
	store := connection.NewStore(filepath.Join(cfg.DataDir, cfg.ConnectionsFile))
	manager := connection.NewManager(store, dbm, log)
	defer manager.Close()

	if rec, err := store.SeedDefault(cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Database); err != nil {
		log(fmt.Sprintf("[MAIN] seed default connection failed: %v", err))
	} else if rec != nil {
		log(fmt.Sprintf("[MAIN] seeded default connection %s (%s)", rec.ID, rec.Database))
	}

	tester := connection.NewTester(log)
	introspector := dbschema.NewIntrospector(log)
	gateway := query.NewGateway(log)
	sessions := session.NewStore()

	// Separate model instances for the loop and the chart call so the
	// toolset binding stays on the loop's instance only.
	loopModel, err := agent.NewChatModel(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create chat model: %w", err)
	}
	chartModel, err := agent.NewChatModel(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create chart model: %w", err)
	}

	agentSvc, err := agent.NewService(loopModel, manager, introspector, gateway, log)
	if err != nil {
		return fmt.Errorf("create agent service: %w", err)
	}
	charts := chart.NewSynthesizer(chartModel, log)

	srv := server.New(manager, tester, introspector, gateway, sessions, agentSvc, charts, log)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log(fmt.Sprintf("[MAIN] listening on %s", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		log(fmt.Sprintf("[MAIN] received %s, shutting down", sig))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
