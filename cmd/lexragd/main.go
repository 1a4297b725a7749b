// Lexragd is the legal document retrieval daemon.
//
// It ingests PDF, DOCX and plain text documents, chunks them along legal
// section boundaries, indexes embeddings in a vector store, and answers
// questions about the documents over an HTTP API with citations back to
// the source text.
//
// Usage:
//
//	# Start the daemon with defaults
//	lexragd serve
//
//	# With a config file
//	lexragd serve --config lexrag.yaml
//
//	# Configure via environment
//	LEXRAG_SERVER_ADDR=:9000 LEXRAG_VECTORSTORE_PROVIDER=qdrant lexragd serve
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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/blobstore"
	"github.com/lexgrove/lexrag/internal/chunker"
	"github.com/lexgrove/lexrag/internal/config"
	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/embeddings"
	"github.com/lexgrove/lexrag/internal/extract"
	"github.com/lexgrove/lexrag/internal/httpapi"
	"github.com/lexgrove/lexrag/internal/llm"
	"github.com/lexgrove/lexrag/internal/logging"
	"github.com/lexgrove/lexrag/internal/rag"
	"github.com/lexgrove/lexrag/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "lexragd",
	Short:   "Legal document retrieval daemon",
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexrag HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting lexragd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider))

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider:  cfg.Embeddings.Provider,
		Dimension: cfg.Embeddings.Dimension,
		BaseURL:   cfg.Embeddings.BaseURL,
		Model:     cfg.Embeddings.Model,
	})
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}
	defer embedder.Close()

	index, err := vectorstore.NewIndex(vectorstore.Config{
		Provider:          cfg.VectorStore.Provider,
		Collection:        cfg.VectorStore.Collection,
		Dimension:         embedder.Dimension(),
		FallbackEnabled:   cfg.VectorStore.FallbackEnabled,
		FallbackMaxPoints: cfg.VectorStore.FallbackMaxPoints,
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			UseTLS: cfg.Qdrant.UseTLS,
			APIKey: cfg.Qdrant.APIKey.Value(),
		},
		Chromem: vectorstore.ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing vector index: %w", err)
	}
	defer index.Close()

	store, err := docstore.NewStore(cfg.Docstore.Provider, cfg.Docstore.Path, logger)
	if err != nil {
		return fmt.Errorf("initializing document store: %w", err)
	}
	defer store.Close()

	blobs, err := blobstore.NewFileStore(cfg.Blobstore.Path)
	if err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}

	generator, err := llm.NewProvider(ctx, llm.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey.Value(),
		GeminiAPIKey:    cfg.LLM.GeminiAPIKey.Value(),
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         time.Duration(cfg.LLM.Timeout),
	}, logger)
	if err != nil {
		if !errors.Is(err, llm.ErrNoProviderConfigured) {
			return fmt.Errorf("initializing llm provider: %w", err)
		}
		logger.Warn("no llm provider configured, answers degrade to raw excerpts")
		generator = nil
	} else {
		defer generator.Close()
		logger.Info("llm provider ready", zap.String("provider", generator.Name()))
	}

	pipeline := rag.New(
		store,
		blobs,
		extract.NewExtractor(""),
		chunker.New(cfg.Pipeline.MaxChunkTokens, cfg.Pipeline.OverlapTokens),
		embedder,
		index,
		generator,
		rag.Options{
			TopK:            cfg.Pipeline.TopK,
			SummaryMaxChars: cfg.Pipeline.SummaryMaxChars,
		},
		logger,
	)

	server, err := httpapi.NewServer(pipeline, store, logger, httpapi.Config{
		Addr:             cfg.Server.Addr,
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		MaxQuestionChars: cfg.Server.MaxQuestionChars,
		QueryTimeout:     time.Duration(cfg.Server.QueryTimeout),
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
