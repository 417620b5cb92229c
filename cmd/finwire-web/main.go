package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	finwire "github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/ratelimit"
	"github.com/finwire/finwire/internal/storage"
)

// loadConfig reads the yaml config used for flag defaults. Missing file
// means defaults; FINWIRE_CONFIG overrides the path.
func loadConfig() *storage.Config {
	path := os.Getenv("FINWIRE_CONFIG")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg := storage.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("finwire-web: bad config %s: %v (using defaults)", path, err)
		return storage.DefaultConfig()
	}
	return cfg
}

func main() {
	cfg := loadConfig()

	dbPath := flag.String("db", cfg.Database.Path, "path to SQLite database")
	addr := flag.String("addr", cfg.Web.Addr, "listen address")
	ratePerSecond := flag.Float64("rate", cfg.Web.RatePerSecond, "sustained requests per second per client")
	rateBurst := flag.Int("burst", cfg.Web.RateBurst, "request burst per client")
	flag.Parse()

	// The admin session secret comes from the environment when set, so
	// deployments can keep it out of the config file.
	jwtSecret := os.Getenv("FINWIRE_JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = cfg.Web.JWTSecret
	}

	engine, err := finwire.NewEngine(finwire.EngineConfig{
		DBPath:        *dbPath,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		ReporterModel: cfg.Ollama.ReporterModel,
		EditorModel:   cfg.Ollama.EditorModel,
		DesignerModel: cfg.Ollama.DesignerModel,
		MarketerModel: cfg.Ollama.MarketerModel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "finwire-web: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	limiter := ratelimit.New(*ratePerSecond, *rateBurst, 10*time.Minute)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(engine, limiter, []byte(jwtSecret)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Idle rate limiter entries are swept in the background.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("finwire-web: listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("finwire-web: %v", err)
		}
	}()

	<-done
	log.Println("finwire-web: shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("finwire-web: shutdown error: %v", err)
	}
	log.Println("finwire-web: stopped")
}
