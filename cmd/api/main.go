package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckslot/internal/buildinfo"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/handlers"
	"github.com/xelth-com/eckslot/internal/solver"
	"github.com/xelth-com/eckslot/internal/websocket"
)

func main() {
	log.Printf("🏷️  eckslot %s", buildinfo.Version)

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Solver algorithms
	log.Println("🧮 Initializing placement solver...")
	tuning := config.LoadSolverTuning(cfg.Solver.TuningFile)
	registry := solver.NewRegistry()
	err = registry.Register(solver.Algorithm{
		Code:        "simulated_annealing",
		Name:        "Simulated Annealing",
		Description: "Iteratively moves items between areas, accepting worse layouts with decreasing probability",
		Runner: solver.NewProcessRunner(solver.Config{
			Interpreter: cfg.Solver.Interpreter,
			ScriptPath:  cfg.Solver.ScriptPath,
			WorkDir:     cfg.Solver.WorkDir,
			Timeout:     cfg.Solver.Timeout,
		}),
	})
	if err != nil {
		log.Fatalf("Failed to register solver: %v", err)
	}
	log.Printf("✅ Solver: %s via %s (timeout %s)", cfg.Solver.ScriptPath, cfg.Solver.Interpreter, cfg.Solver.Timeout)

	// 5. Realtime event hub
	hub := websocket.NewHub()
	go hub.Run()

	// 6. Set up HTTP router
	router := handlers.NewRouter(db, handlers.Options{
		JWTSecret: cfg.JWTSecret,
		Debug:     cfg.Debug,
		Hub:       hub,
		Registry:  registry,
		Tuning:    tuning,
	})

	// 7. Start server with graceful shutdown. Solver runs inherit the
	// request context, so cancelling the base context kills them.
	baseCtx, stopRequests := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server (%s) starting on port %s\n", cfg.AppEnv, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// in-flight optimizations are marked failed by their handlers
		stopRequests()
		time.Sleep(time.Second)
	}
	stopRequests()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
