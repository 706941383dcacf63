package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/omron-net/omron-node/api"
	"github.com/omron-net/omron-node/circuits"
	"github.com/omron-net/omron-node/log"
	"github.com/omron-net/omron-node/metrics"
	"github.com/omron-net/omron-node/workers"
)

func main() {
	// When re-executed as a proof worker, run the single job handed over on
	// stdin and exit. Nothing else of the node starts in this mode.
	if os.Getenv(workers.WorkerModeEnv) != "" {
		if err := workers.Run(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "worker failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output)
	log.Infow("starting omron-node", "version", Version)

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	registry := circuits.NewRegistry()
	loaded, found, err := registry.LoadFromDir(cfg.Circuits.Dir)
	if err != nil {
		log.Fatalf("could not load circuits from %s: %v", cfg.Circuits.Dir, err)
	}
	log.Infow("circuit registry ready", "loaded", loaded, "found", found, "dir", cfg.Circuits.Dir)

	trackerOpts := []metrics.TrackerOption{metrics.WithWindow(cfg.Metrics.Window)}
	var store *metrics.Store
	if cfg.Metrics.Persist {
		store, err = metrics.OpenStore(filepath.Join(cfg.Datadir, "metrics"))
		if err != nil {
			log.Fatalf("could not open metrics store: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warnw("could not close metrics store", "error", err.Error())
			}
		}()
		trackerOpts = append(trackerOpts, metrics.WithStore(store))
	}
	tracker := metrics.NewTracker(trackerOpts...)

	if _, err := api.New(&api.APIConfig{
		Host:     cfg.API.Host,
		Port:     cfg.API.Port,
		Registry: registry,
		Tracker:  tracker,
		Store:    store,
	}); err != nil {
		log.Fatalf("could not start API: %v", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}
