package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/config"
	"github.com/xxxsen/discovery/internal/db"
	"github.com/xxxsen/discovery/internal/filestore"
	"github.com/xxxsen/discovery/internal/handler"
	"github.com/xxxsen/discovery/internal/job"
	"github.com/xxxsen/discovery/internal/middleware"
	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/notify"
	"github.com/xxxsen/discovery/internal/pipeline"
	"github.com/xxxsen/discovery/internal/repo"
	"github.com/xxxsen/discovery/internal/schedule"
	"github.com/xxxsen/discovery/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "discovery",
		Short: "legal discovery document analysis",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the analysis api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	var (
		filePath string
		caseID   string
	)
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "run the pipeline on a local text file and print the final state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, filePath, caseID)
		},
	}
	analyzeCmd.Flags().StringVar(&filePath, "file", "", "document text file")
	analyzeCmd.Flags().StringVar(&caseID, "case", "local", "case id")
	_ = analyzeCmd.MarkFlagRequired("file")

	var question string
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "answer a question from a case's indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, caseID, question)
		},
	}
	askCmd.Flags().StringVar(&caseID, "case", "", "case id")
	askCmd.Flags().StringVar(&question, "question", "", "question to answer")
	_ = askCmd.MarkFlagRequired("case")
	_ = askCmd.MarkFlagRequired("question")

	rootCmd.AddCommand(runCmd, analyzeCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(context.Background(), conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return conn, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", cfg.VectorIndex.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	manager, err := buildManager(cfg, conn)
	if err != nil {
		return err
	}
	index, err := buildIndex(cfg, conn, manager.Embedder())
	if err != nil {
		return err
	}
	rag := buildRetriever(index, manager)
	orchestrator, err := buildOrchestrator(cfg, manager, rag)
	if err != nil {
		return err
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	jobRepo := repo.NewAnalysisJobRepo(conn)
	analysis := service.NewAnalysisService(service.AnalysisDeps{
		Jobs:      jobRepo,
		Results:   repo.NewAnalysisResultRepo(conn),
		Timeline:  repo.NewTimelineRepo(conn),
		Witnesses: repo.NewWitnessRepo(conn),
		Runner:    orchestrator,
		Chunker:   buildChunker(cfg),
		Index:     index,
		Retriever: rag,
		Fetcher:   filestore.NewFetcher(store),
		Notifier:  notify.New(time.Duration(cfg.Notify.TimeoutSeconds) * time.Second),
		Archive:   store,
	}, service.AnalysisOptions{
		MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
		AskTopK:           cfg.Pipeline.AskTopK,
	})

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(repo.NewEmbeddingCacheRepo(conn), cfg.EmbedCache.MaxAgeDays), cfg.Schedule.EmbeddingCacheCleanup); err != nil {
		return err
	}
	staleAfter := time.Duration(cfg.Schedule.StaleJobMinutes) * time.Minute
	staleJob := job.NewStaleJobSweepJob(jobRepo, staleAfter)
	if err := scheduler.AddJob(staleJob, cfg.Schedule.StaleJobSweep); err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Analysis:     handler.NewAnalysisHandler(analysis),
		Health:       handler.NewHealthHandler(conn.PingContext),
		AskRateLimit: time.Duration(cfg.AskRateLimitSeconds) * time.Second,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)
	defer scheduler.Stop()
	// jobs left unfinished by a previous process have no goroutine anymore
	go func() {
		if err := scheduler.RunNow(staleJob.Name()); err != nil {
			logutil.GetLogger(ctx).Debug("startup sweep skipped", zap.Error(err))
		}
	}()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// runAnalyze runs the pipeline without persistence. Cross-referencing
// sees an empty in-memory index.
func runAnalyze(ctx context.Context, cfg *config.Config, path, caseID string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	cfg.VectorIndex.Type = "memory"
	cfg.EmbedCache.Persist = false
	manager, err := buildManager(cfg, nil)
	if err != nil {
		return err
	}
	index, err := buildIndex(cfg, nil, manager.Embedder())
	if err != nil {
		return err
	}
	orchestrator, err := buildOrchestrator(cfg, manager, buildRetriever(index, manager))
	if err != nil {
		return err
	}
	state := orchestrator.Run(ctx, pipeline.Input{
		JobID:       "local-" + time.Now().UTC().Format("20060102T150405"),
		CaseID:      caseID,
		DocumentURL: "file://" + path,
		RawText:     string(raw),
		OnProgress: func(ctx context.Context, st model.PipelineState) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", st.ProgressPercent, st.CurrentAgent)
		},
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func runAsk(ctx context.Context, cfg *config.Config, caseID, question string) error {
	if cfg.VectorIndex.Type != "pgvector" {
		return fmt.Errorf("ask needs a persistent vector index, got %q", cfg.VectorIndex.Type)
	}
	conn, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	manager, err := buildManager(cfg, conn)
	if err != nil {
		return err
	}
	index, err := buildIndex(cfg, conn, manager.Embedder())
	if err != nil {
		return err
	}
	answer := buildRetriever(index, manager).AnswerQuestion(ctx, caseID, question, cfg.Pipeline.AskTopK)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(answer)
}
