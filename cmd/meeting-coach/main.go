package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/bobthearsonist/meeting-coach/pkg/api"
	"github.com/bobthearsonist/meeting-coach/pkg/classifier"
	"github.com/bobthearsonist/meeting-coach/pkg/config"
	"github.com/bobthearsonist/meeting-coach/pkg/pipeline"
	"github.com/bobthearsonist/meeting-coach/pkg/storage"
	"github.com/bobthearsonist/meeting-coach/pkg/timeline"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	memStore := storage.NewMemoryStore()
	diskStore, err := storage.NewDiskStore(cfg.StoragePath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize disk storage")
	}
	defer diskStore.Close()
	archive := &storage.Archive{Mem: memStore, Disk: diskStore}

	hub := api.NewHub()
	tl := timeline.New(cfg.Timeline, cfg.Alerts)
	cls := classifier.New(cfg.Classifier)
	manager := pipeline.NewManager(cfg, cls, tl, hub, archive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start pipeline")
	}

	handlers := api.NewHandlers(manager, tl, archive, hub)

	router := mux.NewRouter()
	router.HandleFunc("/segments", handlers.SubmitSegmentHandler).Methods("POST")
	router.HandleFunc("/timeline", handlers.TimelineHandler).Methods("GET")
	router.HandleFunc("/sessions/start", handlers.StartSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/stop", handlers.StopSessionHandler).Methods("POST")
	router.HandleFunc("/sessions", handlers.ListSessionsHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}", handlers.GetSessionHandler).Methods("GET")
	router.HandleFunc("/status", handlers.StatusHandler).Methods("GET")
	router.HandleFunc("/ws", handlers.WebSocketHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("address", cfg.Server.Address).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	// Archive whatever session is still running before the pipeline goes away.
	if _, err := manager.StopSession(); err != nil && err != pipeline.ErrNoActiveSession {
		log.WithError(err).Error("failed to stop session on shutdown")
	}
	manager.Stop()

	log.Info("server exited")
}
