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

	"github.com/demandly/casefile-backend/internal/data/db"
	"github.com/demandly/casefile-backend/internal/data/repos"
	"github.com/demandly/casefile-backend/internal/handlers"
	"github.com/demandly/casefile-backend/internal/ingestion/extractor"
	"github.com/demandly/casefile-backend/internal/jobs/executor"
	"github.com/demandly/casefile-backend/internal/middleware"
	"github.com/demandly/casefile-backend/internal/modules/auth"
	"github.com/demandly/casefile-backend/internal/modules/casefile/steps"
	"github.com/demandly/casefile-backend/internal/platform/envutil"
	"github.com/demandly/casefile-backend/internal/platform/gcs"
	"github.com/demandly/casefile-backend/internal/platform/logger"
	"github.com/demandly/casefile-backend/internal/platform/openai"
	"github.com/demandly/casefile-backend/internal/server"
)

func main() {
	// Missing .env is fine in deployed environments.
	_ = godotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	postgres, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAll(postgres.DB()); err != nil {
		log.Error("postgres migration failed", "error", err)
		os.Exit(1)
	}

	bucket, err := gcs.NewBucketService(log)
	if err != nil {
		log.Error("bucket init failed", "error", err)
		os.Exit(1)
	}
	oracle, err := openai.NewClient(log)
	if err != nil {
		log.Error("oracle client init failed", "error", err)
		os.Exit(1)
	}

	repoSet := repos.Wire(postgres.DB(), log)
	textExtractor := extractor.NewLocalExtractor(log)

	// runCtx bounds every background pipeline; canceled on shutdown after
	// the HTTP server stops taking uploads.
	runCtx, stopPipelines := context.WithCancel(context.Background())
	defer stopPipelines()

	exec := executor.New(log,
		steps.PipelineDeps{
			Log:       log,
			Oracle:    oracle,
			Bucket:    bucket,
			Extractor: textExtractor,
			Docs:      repoSet.Documents,
			Events:    repoSet.Events,
		},
		steps.SynthesisDeps{
			Log:   log,
			Cases: repoSet.Cases,
			Docs:  repoSet.Documents,
		},
		steps.ChronologyDeps{
			Log:    log,
			Oracle: oracle,
			Cases:  repoSet.Cases,
			Events: repoSet.Events,
			Chrons: repoSet.Chronologies,
		},
	)

	authService := auth.NewService(log, repoSet.Attorneys)
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     handlers.NewAuthHandler(authService),
		CaseHandler:     handlers.NewCaseHandler(log, repoSet),
		DocumentHandler: handlers.NewDocumentHandler(log, bucket, repoSet, exec, runCtx),
		AuthMiddleware:  middleware.NewAuthMiddleware(log, authService),
	})

	port := envutil.String("PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Info("http server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", "error", err)
	}

	// In-flight documents get a grace window before their context dies.
	done := make(chan struct{})
	go func() {
		exec.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("all pipelines drained")
	case <-time.After(60 * time.Second):
		log.Warn("pipelines still running at shutdown deadline, canceling")
		stopPipelines()
		<-done
	}
}
