package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/api"
	"github.com/newthinker/chartgen/internal/app"
	"github.com/newthinker/chartgen/internal/config"
	"github.com/newthinker/chartgen/internal/logger"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for on-demand chart runs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port")
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := api.Dependencies{
		Runner:         a,
		Artifacts:      a.Artifacts(),
		Gatherer:       a.Metrics(),
		DefaultSymbols: cfg.SymbolList(),
	}
	if l := a.Ledger(); l != nil {
		deps.History = l
	}

	server, err := api.NewServer(api.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		APIKey:  cfg.Server.APIKey,
		JobTTL:  time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MaxJobs: cfg.Server.MaxJobs,
	}, deps, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Server.APIKey == "" {
		log.Warn("server.api_key not set, API authentication disabled")
	}
	log.Info("starting chartgen server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Provider.Name),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
