/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dbquery-gateway/internal/api"
	"dbquery-gateway/internal/config"
	"dbquery-gateway/internal/database"
	"dbquery-gateway/internal/llm"
	"dbquery-gateway/internal/logging"
	"dbquery-gateway/internal/nlsql"
	"dbquery-gateway/internal/orchestrator"
	"dbquery-gateway/internal/store"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

var (
	configFile  string
	httpAddr    string
	dataDir     string
	llmProvider string
	llmModel    string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "dbquery-gateway",
	Short: "DB Query Gateway - HTTP gateway for safe SQL access to registered databases",
	Long: `dbquery-gateway registers PostgreSQL and MySQL connections, introspects
their schemas, and serves read-only SQL and natural language queries over a
REST API. Generated SQL is probed against the live engine before it is
returned, so every response is guaranteed executable.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "",
		"Path to configuration file")
	rootCmd.Flags().StringVar(&httpAddr, "addr", "",
		"HTTP server address (overrides config file)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "",
		"Directory holding the connection registry (overrides config file)")
	rootCmd.Flags().StringVar(&llmProvider, "llm-provider", "",
		"Model provider for natural language SQL: anthropic, openai, or ollama")
	rootCmd.Flags().StringVar(&llmModel, "llm-model", "",
		"Model name for natural language SQL (overrides config file)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Flags have been parsed; runtime errors should not print usage
	cmd.SilenceUsage = true

	if logLevel != "" {
		logging.SetLevelFromString(logLevel)
	}

	flags := config.CLIFlags{
		ConfigFileSet:  cmd.Flags().Changed("config"),
		ConfigFile:     configFile,
		HTTPAddr:       httpAddr,
		HTTPAddrSet:    cmd.Flags().Changed("addr"),
		DataDir:        dataDir,
		DataDirSet:     cmd.Flags().Changed("data-dir"),
		LLMProvider:    llmProvider,
		LLMProviderSet: cmd.Flags().Changed("llm-provider"),
		LLMModel:       llmModel,
		LLMModelSet:    cmd.Flags().Changed("llm-model"),
	}

	configPath := configFile
	if configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		configPath = config.GetDefaultConfigPath(execPath)
	}

	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		return err
	}

	registry, err := store.NewStore(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open connection registry: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logging.Warn("failed to close registry", "error", err.Error())
		}
	}()

	adapters := database.NewDefaultRegistry()
	connections := database.NewConnectionService(adapters)
	connections.SetConnectTimeout(time.Duration(cfg.Query.ConnectTimeoutSeconds) * time.Second)
	queries := database.NewQueryService()

	llmClient := llm.NewClient(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	natural := nlsql.NewService(llmClient)

	gateway := orchestrator.New(connections, queries, natural, registry)
	handler := api.NewHandler(gateway, llmClient)

	// Reload the config file on change; only settings that can apply
	// without a restart take effect live.
	reloadable := config.NewReloadableConfig(cfg, configPath, flags)
	reloadable.OnReload(func(newCfg *config.Config) {
		connections.SetConnectTimeout(time.Duration(newCfg.Query.ConnectTimeoutSeconds) * time.Second)
	})
	if config.ConfigFileExists(configPath) {
		watcher, err := config.NewFileWatcher(configPath, reloadable.Reload)
		if err != nil {
			logging.Warn("config file watching disabled", "error", err.Error())
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("gateway listening",
			"address", cfg.HTTP.Address,
			"registry", registry.Path(),
			"llmProvider", cfg.LLM.Provider,
			"llmConfigured", llmClient.IsConfigured())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
