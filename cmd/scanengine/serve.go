package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/log"
	"github.com/vulnscan/scanengine/pkg/metrics"
	"github.com/vulnscan/scanengine/pkg/security"
	"github.com/vulnscan/scanengine/pkg/semaphore"
	"github.com/vulnscan/scanengine/pkg/storage"
	"github.com/vulnscan/scanengine/pkg/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue supervisor loop",
	Long: `serve opens the persistence store, ensures a certificate authority
exists for scanner mTLS, and ticks the queue supervisor until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Println("Starting scanengine...")
		fmt.Printf("  Store:    %s\n", cfg.StorePath)
		fmt.Printf("  Queueing: %v\n", cfg.UseScanQueue)
		fmt.Printf("  Max active handlers: %d\n", cfg.MaxActiveScanHandlers)
		fmt.Println()

		store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		fmt.Println("✓ Store opened")
		metrics.RegisterComponent("store", true, "ready")

		key := security.DeriveKeyFromStoreID(cfg.StoreID)
		if err := security.SetStoreEncryptionKey(key); err != nil {
			return fmt.Errorf("set store encryption key: %w", err)
		}

		ca := security.NewCertAuthority(store)
		if err := ca.LoadFromStore(); err != nil {
			if err := ca.Initialize(); err != nil {
				return fmt.Errorf("initialize CA: %w", err)
			}
			if err := ca.SaveToStore(); err != nil {
				return fmt.Errorf("save CA: %w", err)
			}
			fmt.Println("✓ Certificate authority initialized")
		} else {
			fmt.Println("✓ Certificate authority loaded")
		}

		if cfg.MaxConcurrentScanUpdates > 0 {
			// Each handler process opens its own Gate against the shared
			// BoltDB file; this call only ensures the counter bucket/key
			// exist before any handler races to create them.
			if _, err := semaphore.Open(store.DB(), "updates", cfg.MaxConcurrentScanUpdates); err != nil {
				return fmt.Errorf("open semaphore gate: %w", err)
			}
			fmt.Printf("✓ Semaphore gate ready (capacity %d)\n", cfg.MaxConcurrentScanUpdates)
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve self path: %w", err)
		}
		sup := supervisor.New(store, &cfg, supervisor.ExecForker{SelfPath: exe})
		metrics.RegisterComponent("supervisor", true, "ready")
		fmt.Println("✓ Queue supervisor started")

		collector := metrics.NewCollector(store)
		collector.Start()
		metrics.SetVersion(Version)
		fmt.Println("✓ Metrics collector started")

		metrics.RegisterComponent("scanner", true, "handlers dial on demand")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.ListenAddr)
		fmt.Printf("✓ Health endpoints: http://%s/{health,ready,live}\n", cfg.ListenAddr)
		fmt.Println()
		fmt.Println("Supervisor running. Press Ctrl+C to stop.")

		tickInterval := 2 * time.Second
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		supervisorLog := log.WithComponent("supervisor")
		for {
			select {
			case <-ticker.C:
				active, err := sup.Tick()
				if err != nil {
					supervisorLog.Warn().Err(err).Msg("tick failed")
					continue
				}
				supervisorLog.Debug().Int("active_handlers", active).Msg("tick complete")
			case sig := <-sigCh:
				fmt.Printf("\nReceived %v, shutting down...\n", sig)
				collector.Stop()
				_ = httpServer.Close()
				fmt.Println("✓ Shutdown complete")
				return nil
			case err := <-errCh:
				fmt.Fprintf(os.Stderr, "\n%v\n", err)
				collector.Stop()
				return err
			}
		}
	},
}
