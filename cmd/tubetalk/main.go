package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/tubetalk/tubetalk/internal/ai"
	"github.com/tubetalk/tubetalk/internal/captions"
	"github.com/tubetalk/tubetalk/internal/config"
	"github.com/tubetalk/tubetalk/internal/embedcache"
	"github.com/tubetalk/tubetalk/internal/handler"
	"github.com/tubetalk/tubetalk/internal/index"
	"github.com/tubetalk/tubetalk/internal/job"
	"github.com/tubetalk/tubetalk/internal/middleware"
	"github.com/tubetalk/tubetalk/internal/repo"
	"github.com/tubetalk/tubetalk/internal/schedule"
	"github.com/tubetalk/tubetalk/internal/service"
	"github.com/tubetalk/tubetalk/internal/transcriptstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tubetalk",
		Short: "tubetalk video chat server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run tubetalk server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			_ = godotenv.Load()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			var db *sql.DB
			if cfg.Database != nil {
				db, err = repo.Open(*cfg.Database)
				if err != nil {
					return fmt.Errorf("open db: %w", err)
				}
				if err := repo.ApplyMigrations(db); err != nil {
					return fmt.Errorf("migrations: %w", err)
				}
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("index", cfg.Index.Type),
	)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
	var cacheRepo *repo.EmbeddingCacheRepo
	if cfg.EmbeddingCache.UseDatabase && db != nil {
		cacheRepo = repo.NewEmbeddingCacheRepo(db)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.EmbeddingCache.LRUSize,
		time.Duration(cfg.EmbeddingCache.LRUTTLSeconds)*time.Second,
	)
	aiManager := ai.NewManager(
		ai.NewGenerator(aiProvider, cfg.AI.Model),
		embedder,
		ai.ManagerConfig{
			Timeout:          cfg.AI.Timeout,
			MaxQuestionChars: cfg.AI.MaxQuestionChars,
			AnswerStyle:      cfg.AI.AnswerStyle,
		},
	)

	idx, err := index.New(cfg.Index, index.Deps{DB: db})
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	var archive transcriptstore.Store
	if cfg.TranscriptStore != nil {
		archive, err = transcriptstore.New(*cfg.TranscriptStore)
		if err != nil {
			return fmt.Errorf("init transcript store: %w", err)
		}
	}

	captionClient := captions.New(cfg.Captions)
	loaderService := service.NewLoaderService(captionClient, aiManager, idx, archive, service.LoaderConfig{
		ChunkSize:  cfg.Split.ChunkSize,
		Overlap:    cfg.Split.Overlap,
		ReuseCache: cfg.Split.ReuseCache,
	})
	chatService := service.NewChatService(aiManager, aiManager, idx, service.ChatConfig{
		TopK:             cfg.Retrieve.TopK,
		MaxQuestionChars: cfg.AI.MaxQuestionChars,
	})

	deps := handler.RouterDeps{
		Videos:     handler.NewVideoHandler(loaderService, idx),
		Chat:       handler.NewChatHandler(chatService),
		LoadWindow: time.Duration(cfg.LoadRateLimitSeconds) * time.Second,
		ChatWindow: time.Duration(cfg.ChatRateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cacheRepo != nil && cfg.Jobs.EmbeddingCacheCleanupSpec != "" {
		cleanup := job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.EmbeddingCacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.EmbeddingCacheCleanupSpec); err != nil {
			return fmt.Errorf("schedule cleanup job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
