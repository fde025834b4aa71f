// Fleetsight serves the fleet telemetry viewer: the HTTP API for track
// retrieval and sample editing, the admin debug surface, and an optional
// serial ingest path for a directly attached GPS receiver.
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

	"github.com/fleetsight/fleetsight/internal/api"
	"github.com/fleetsight/fleetsight/internal/config"
	"github.com/fleetsight/fleetsight/internal/ingest"
	"github.com/fleetsight/fleetsight/internal/store"
	"github.com/fleetsight/fleetsight/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "telemetry.db", "Path to the telemetry database")
	tuningFile = flag.String("tuning", "", "Optional tuning config JSON")
	serialPort = flag.String("serial", "", "Serial port of an attached GPS receiver (optional)")
	serialVeh  = flag.String("serial-vehicle", "", "Vehicle id for serial ingest")
	migrateCmd = flag.String("migrate", "", "Run a migration command (up, down, version) and exit")
	migrations = flag.String("migrations", "migrations", "Path to the migrations directory")
)

func runMigration(st *store.Store, command string) {
	switch command {
	case "up":
		if err := st.MigrateUp(*migrations); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Print("migrations applied")
	case "down":
		if err := st.MigrateDown(*migrations); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Print("last migration rolled back")
	case "version":
		version, dirty, err := st.MigrateVersion(*migrations)
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		log.Printf("schema version %d (dirty: %v)", version, dirty)
	default:
		log.Fatalf("unknown migrate command %q (valid: up, down, version)", command)
	}
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("fleetsight %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyTuningConfig()
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	st, err := store.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	if *migrateCmd != "" {
		runMigration(st, *migrateCmd)
		return
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// With a receiver attached, run the monitor routine to manage IO on the
	// serial port and feed its lines into the store.
	if *serialPort != "" {
		if *serialVeh == "" {
			log.Fatal("serial-vehicle is required when serial is set")
		}
		port, err := ingest.NewGPSPort(*serialPort)
		if err != nil {
			log.Fatalf("failed to open serial port: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := port.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case payload := <-port.Events():
					if err := ingest.HandleLine(st, *serialVeh, payload); err != nil {
						log.Printf("error handling line: %v", err)
					}
				case <-ctx.Done():
					log.Printf("ingest routine terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// over a tailnet)
		st.AttachAdminRoutes(mux)

		apiServer := api.NewServer(st, tuning.GetUnits())
		apiServer.SetMaxJump(tuning.GetMaxJumpMeters())
		mux.Handle("/api/", apiServer.ServeMux())

		handler := http.Handler(mux)
		if *devMode {
			handler = api.LoggingMiddleware(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: handler,
		}

		go func() {
			log.Printf("listening on %s", *listen)
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
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
