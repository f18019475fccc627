package cmd

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ragcore/ragcore/internal/facade"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/httpapi"
	"github.com/ragcore/ragcore/internal/ingest"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/router"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store"
	"github.com/ragcore/ragcore/internal/store/memstore"
	"github.com/ragcore/ragcore/internal/telemetry"
	"github.com/ragcore/ragcore/pkg/clock"
	"github.com/ragcore/ragcore/pkg/tokencount"
)

func newServeCmd() *cobra.Command {
	var addr string
	var corpusPath string
	var useFakeLLM bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, corpusPath, useFakeLLM)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "path to a JSON document corpus to load at startup")
	cmd.Flags().BoolVar(&useFakeLLM, "fake-llm", false, "use a deterministic in-process LLM instead of OpenAI (for local runs without an API key)")

	return cmd
}

func runServe(ctx context.Context, addr, corpusPath string, useFakeLLM bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfgStore := configStore(cfg)

	log := telemetry.NewLogger(slog.LevelInfo)
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	engine, err := memstore.New()
	if err != nil {
		return fmt.Errorf("serve: build store: %w", err)
	}

	llm := buildLLMClient(useFakeLLM, time.Duration(cfg.LLMTimeoutSeconds)*time.Second)
	adapter := store.NewTimed(engine, time.Duration(cfg.StoreTimeoutSeconds)*time.Second)

	if corpusPath != "" {
		f, err := os.Open(corpusPath)
		if err != nil {
			return fmt.Errorf("serve: open corpus: %w", err)
		}
		stats, err := ingest.Load(ctx, f, engine, llm, tokencount.NewTiktoken())
		f.Close()
		if err != nil {
			return fmt.Errorf("serve: load corpus: %w", err)
		}
		log.Info("corpus loaded", "documents", stats.Documents, "chunks", stats.Chunks)
	}

	retriever := retrieval.New(adapter, llm, cfgStore)
	generator := generation.New(llm)
	clk := clock.New()
	sessions := session.NewManager(cfgStore, clk)
	rt := router.New(retriever, generator, llm, sessions, cfgStore)
	f := facade.New(sessions, rt, cfgStore, log)

	sweeper := session.NewSweeper(sessions, log)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	if err := sweeper.Start(sweepCtx, cfg.SweepIntervalSeconds); err != nil {
		return fmt.Errorf("serve: start sweeper: %w", err)
	}

	srv := httpapi.NewServer(f, metrics, reg, log)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func buildLLMClient(useFakeLLM bool, timeout time.Duration) llmclient.Client {
	if useFakeLLM {
		return llmclient.NewFake(8)
	}
	retrying := llmclient.NewRetrying(llmclient.NewOpenAI(llmclient.OpenAIConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
	}))
	return llmclient.NewTimed(retrying, timeout)
}
