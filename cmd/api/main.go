package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/calliope-audio/stemforge/internal/adapters/archive"
	"github.com/calliope-audio/stemforge/internal/adapters/codec"
	"github.com/calliope-audio/stemforge/internal/adapters/rest"
	"github.com/calliope-audio/stemforge/internal/adapters/sqlite"
	"github.com/calliope-audio/stemforge/internal/adapters/storage"
	"github.com/calliope-audio/stemforge/internal/core/services"
	"github.com/calliope-audio/stemforge/internal/worker"
)

var cli struct {
	Addr      string `help:"HTTP listen address." default:":8080" env:"STEMFORGE_ADDR"`
	DB        string `help:"SQLite database path." default:"stemforge.db" env:"STEMFORGE_DB"`
	Storage   string `help:"Object storage root directory." default:"data/storage" env:"STEMFORGE_STORAGE"`
	WorkDir   string `help:"Scratch directory for in-flight jobs." default:"data/work" env:"STEMFORGE_WORKDIR"`
	Workers   int    `help:"Concurrent export workers." default:"2" env:"STEMFORGE_WORKERS"`
	QueueSize int    `help:"Pending export queue capacity." default:"100" env:"STEMFORGE_QUEUE"`
	FFmpeg    string `help:"Path to the ffmpeg binary (empty = search PATH)." env:"STEMFORGE_FFMPEG"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("stemforge"),
		kong.Description("Multi-track audio stem rendering and metering service."),
	)

	// 1. Initialize "Driven" Adapters (The Tools)
	db, err := sqlite.NewAdapter(cli.DB)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewLocal(cli.Storage)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize storage: %v", err)
	}

	dispatcher := codec.NewDispatcher(cli.FFmpeg)
	// Surface codec capability at startup; requests for a missing
	// encoder are rejected at validation time with the same check.
	log.Printf("codec: encoders available: %v", dispatcher.Formats())

	if err := os.MkdirAll(cli.WorkDir, 0o755); err != nil {
		log.Fatalf("FATAL: Failed to create work dir: %v", err)
	}

	// 2. Initialize Core Logic (The Driver)
	// Dependency Injection: the compiler guarantees each adapter
	// implements its port.
	svc := services.NewOrchestrator(db, db, dispatcher, store, archive.NewZip(), cli.WorkDir)

	pool := worker.NewPool(svc, cli.QueueSize)
	svc.AttachQueue(pool)
	pool.Start(cli.Workers)
	defer pool.Stop()

	// 3. Initialize "Driving" Adapter (The Interface)
	handler := rest.NewHandler(svc)

	// 4. Start the Server
	log.Println("------------------------------------------------")
	log.Printf("🎛  Stemforge API is running on %s", cli.Addr)
	log.Println("------------------------------------------------")

	srv := &http.Server{
		Addr:              cli.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
