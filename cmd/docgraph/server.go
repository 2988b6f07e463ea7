package docgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the docgraph HTTP server",
	Long: `Start the docgraph HTTP server to provide REST API access to the analysis engine.

The server provides endpoints for:
- Cross-document analysis, relationships, clusters and conflicts
- Knowledge graph traversal, export and statistics
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")
	serverCmd.Flags().Int("max-documents", 500, "Maximum documents per request")

	// Embedding flags
	serverCmd.Flags().String("embedding-provider", "openai", "Embedding provider (openai, embedeverything, none)")
	serverCmd.Flags().String("embedding-model", "text-embedding-3-small", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Vector store flags
	serverCmd.Flags().String("vectorstore-backend", "none", "Vector store backend (none, memory, postgres, badger, neo4j)")
	serverCmd.Flags().String("vectorstore-dsn", "", "PostgreSQL connection string")
	serverCmd.Flags().String("vectorstore-path", "", "Badger directory")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrideConfigWithFlags(cmd, cfg)

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.Default()
	logger.Info("Initializing docgraph", "vectorstore", cfg.VectorStore.Backend, "similarity", cfg.NLP.Similarity)
	client, err := docgraph.NewClientFromConfig(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize docgraph: %w", err)
	}
	defer client.Close()

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("max-documents") {
		cfg.Server.MaxDocuments, _ = cmd.Flags().GetInt("max-documents")
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	// Vector store flags
	if cmd.Flags().Changed("vectorstore-backend") {
		cfg.VectorStore.Backend, _ = cmd.Flags().GetString("vectorstore-backend")
	}
	if cmd.Flags().Changed("vectorstore-dsn") {
		cfg.VectorStore.DSN, _ = cmd.Flags().GetString("vectorstore-dsn")
	}
	if cmd.Flags().Changed("vectorstore-path") {
		cfg.VectorStore.Path, _ = cmd.Flags().GetString("vectorstore-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxDocuments < 0 {
		return fmt.Errorf("invalid max documents: %d", cfg.Server.MaxDocuments)
	}
	return nil
}
