package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/motion.report/internal/ahrs"
	"github.com/banshee-data/motion.report/internal/api"
	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/events"
	"github.com/banshee-data/motion.report/internal/fusion"
	"github.com/banshee-data/motion.report/internal/session"
	"github.com/banshee-data/motion.report/internal/timesync"
)

var (
	listen       = flag.String("listen", ":8080", "Listen address")
	configPath   = flag.String("config", "", "Path to tuning config JSON (optional)")
	manifestPath = flag.String("manifest", "", "Path to session manifest YAML to preload (optional)")
	staticDir    = flag.String("static", "", "Directory of static UI files to serve at / (optional)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	bus := events.NewBus()
	registry := session.NewRegistry(bus)
	orch := fusion.NewOrchestrator(ahrs.Options{
		Algorithm: cfg.GetAlgorithm(),
		Beta:      cfg.GetBeta(),
		Kp:        cfg.GetMahonyKp(),
		Ki:        cfg.GetMahonyKi(),
	}, cfg.GetBackgroundPrecompute(), nil)
	syncModel := timesync.NewModel(bus, nil)
	apiServer := api.NewServer(registry, orch, syncModel, bus, cfg)

	if *manifestPath != "" {
		if err := session.LoadManifest(*manifestPath, registry); err != nil {
			log.Fatalf("Failed to load session manifest: %v", err)
		}
		log.Printf("Preloaded %d session(s) from %s", len(registry.List()), *manifestPath)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiMux := apiServer.ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/ws", apiMux)
		if *staticDir != "" {
			mux.Handle("/", http.FileServer(http.Dir(*staticDir)))
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("Listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		// Let any in-flight background fusion finish before exit.
		orch.Wait()
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
