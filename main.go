package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/phasefield-data/fracture.report/internal/api"
	"github.com/phasefield-data/fracture.report/internal/config"
	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/db"
	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/units"
	"github.com/phasefield-data/fracture.report/internal/version"
	"github.com/phasefield-data/fracture.report/internal/watch"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (mounts the debug SQL console)")
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "fracture.db", "SQLite database path")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory")
	configPath    = flag.String("config", "", "Tuning config JSON path")
	resultsDir    = flag.String("results", "", "Results directory to watch for VTK output (watching disabled when empty)")
	runLabel      = flag.String("run-label", "", "Label for the run opened by the watcher")
	fieldName     = flag.String("field", "", "Damage field name (overrides config)")
	threshold     = flag.Float64("threshold", -1, "Critical damage threshold in [0,1] (overrides config)")
	reference     = flag.String("ref", "", "Reference point as x,y,z (overrides config)")
	regionMin     = flag.String("region-min", "", "Region lower corner as x,y,z (overrides config)")
	regionMax     = flag.String("region-max", "", "Region upper corner as x,y,z (overrides config)")
	defaultUnits  = flag.String("units", units.Meters, "Default response length units")
)

// parsePointFlag parses an "x,y,z" flag value.
func parsePointFlag(raw string) (mesh.Point, error) {
	var p mesh.Point
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("%q is not of the form x,y,z", raw)
	}
	for k, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("component %d of %q: %w", k, raw, err)
		}
		p[k] = v
	}
	return p, nil
}

// buildScanConfig layers command-line overrides on top of the tuning
// file values.
func buildScanConfig(tuning *config.TuningConfig) (cracktip.ScanConfig, error) {
	cfg := tuning.ScanConfig()

	if *fieldName != "" {
		cfg.FieldName = *fieldName
	}
	if *threshold >= 0 {
		if *threshold > 1 {
			return cfg, fmt.Errorf("threshold %g out of range [0,1]", *threshold)
		}
		cfg.Threshold = *threshold
	}
	if *reference != "" {
		p, err := parsePointFlag(*reference)
		if err != nil {
			return cfg, fmt.Errorf("invalid -ref: %w", err)
		}
		cfg.Reference = p
	}
	if *regionMin != "" {
		p, err := parsePointFlag(*regionMin)
		if err != nil {
			return cfg, fmt.Errorf("invalid -region-min: %w", err)
		}
		cfg.Region.Min = p
	}
	if *regionMax != "" {
		p, err := parsePointFlag(*regionMax)
		if err != nil {
			return cfg, fmt.Errorf("invalid -region-max: %w", err)
		}
		cfg.Region.Max = p
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile, *migrationsDir)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*defaultUnits) {
		log.Fatalf("Invalid units %q; valid values: %s", *defaultUnits, units.GetValidUnitsString())
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	scanCfg, err := buildScanConfig(tuning)
	if err != nil {
		log.Fatalf("Invalid scan configuration: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	store := db.NewTipStore(database)

	log.Printf("fracture-report %s (%s, built %s) field=%q threshold=%g",
		version.Version, version.GitSHA, version.BuildTime, scanCfg.FieldName, scanCfg.Threshold)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Watcher goroutine: tail the results directory and append each new
	// output file to a freshly opened run.
	if *resultsDir != "" {
		debounce, err := time.ParseDuration(tuning.GetWatchDebounce())
		if err != nil {
			log.Fatalf("Invalid watch debounce: %v", err)
		}

		label := *runLabel
		if label == "" {
			label = *resultsDir
		}
		tracker, err := cracktip.NewTracker(label, scanCfg, store, nil)
		if err != nil {
			log.Fatalf("Failed to open run: %v", err)
		}
		log.Printf("opened run %s (%s)", tracker.Run().ID, label)

		watcher, err := watch.New(*resultsDir, tracker, tuning.GetStepPattern(), debounce, nil)
		if err != nil {
			log.Fatalf("Failed to create watcher: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("watcher failed: %v", err)
			}
			log.Print("watcher routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (dev mode only)
		if *devMode {
			database.AttachAdminRoutes(mux, *dbFile)
		}

		apiServer := api.NewServer(store, scanCfg, *defaultUnits, nil)
		mux.Handle("/", api.LoggingMiddleware(apiServer.ServeMux()))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
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
