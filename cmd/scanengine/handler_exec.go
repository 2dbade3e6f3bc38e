package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/handler"
	"github.com/vulnscan/scanengine/pkg/log"
	"github.com/vulnscan/scanengine/pkg/scanner"
	"github.com/vulnscan/scanengine/pkg/security"
	"github.com/vulnscan/scanengine/pkg/semaphore"
	"github.com/vulnscan/scanengine/pkg/storage"
	"github.com/vulnscan/scanengine/pkg/types"
)

// handlerBootstrapCmd is the intermediate layer of the two-layer fork
// (§4.5 step 3): it re-execs itself once more as __handler-run, reports the
// resulting pid to the supervisor over fd 3, and exits immediately without
// waiting — the grandchild's Setsid detaches it from this process's lifetime.
var handlerBootstrapCmd = &cobra.Command{
	Use:    "__handler-bootstrap <report-id>",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Exit(runHandlerBootstrap(args[0]))
		return nil
	},
}

// handlerRunCmd is the grandchild layer (§4.5 step 4): it re-opens the
// store, drives one handler.Handler.Run call to completion, and exits.
var handlerRunCmd = &cobra.Command{
	Use:    "__handler-run <report-id>",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Exit(runHandlerRun(cmd, args[0]))
		return nil
	},
}

func runHandlerBootstrap(reportID string) int {
	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "__handler-bootstrap: resolve self path: %v\n", err)
		return 1
	}

	child := exec.Command(self, "__handler-run", reportID)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "__handler-bootstrap: start grandchild: %v\n", err)
		return 1
	}

	pipe := os.NewFile(3, "pidpipe")
	if pipe == nil {
		fmt.Fprintln(os.Stderr, "__handler-bootstrap: fd 3 not inherited")
		return 1
	}
	defer pipe.Close()

	if _, err := fmt.Fprintf(pipe, "%d", child.Process.Pid); err != nil {
		fmt.Fprintf(os.Stderr, "__handler-bootstrap: write pid: %v\n", err)
		return 1
	}

	return 0
}

func runHandlerRun(cmd *cobra.Command, reportID string) int {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		fmt.Fprintf(os.Stderr, "__handler-run: load config: %v\n", err)
		return 1
	}

	signal.Reset()

	store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "__handler-run: open store: %v\n", err)
		return 1
	}
	defer store.Close()

	logger := log.WithComponent("handler").With().Str("report_id", reportID).Logger()
	logger.Info().Msg("__handler-run: started")

	req, err := findQueueEntry(store, reportID)
	if err != nil {
		logger.Error().Err(err).Msg("__handler-run: queue entry not found")
		return 1
	}
	logger = log.WithTaskID(strconv.FormatInt(req.TaskKey, 10)).With().Str("component", "handler").Str("report_id", reportID).Logger()

	data, err := buildConnectionData(store, &cfg, reportID)
	if err != nil {
		logger.Error().Err(err).Msg("__handler-run: build connection data")
		return 1
	}

	// Gate.Acquire/Release are called unconditionally by the poll loop; a
	// capacity of 0 makes them no-ops (semaphore.Gate's own contract), but
	// the Gate itself must be non-nil.
	gate, err := semaphore.Open(store.DB(), "updates", cfg.MaxConcurrentScanUpdates)
	if err != nil {
		logger.Error().Err(err).Msg("__handler-run: open semaphore gate")
		return 1
	}

	h := &handler.Handler{
		Store:  store,
		Config: &cfg,
		Gate:   gate,
		Connect: func(ctx context.Context, d types.ConnectionData) (scanner.API, error) {
			return scanner.Connect(ctx, d, nil)
		},
	}

	code, err := h.Run(context.Background(), req, data)
	if err != nil {
		logger.Error().Err(err).Int("code", int(code)).Msg("__handler-run: finished with error")
		return 1
	}
	logger.Info().Int("code", int(code)).Msg("__handler-run: finished")
	return 0
}

// findQueueEntry is the linear scan a grandchild pays once per fork: the
// Q-store has no get-by-id index, only the enqueue-ordered iteration §4.3
// specifies.
func findQueueEntry(store storage.QueueStore, reportID string) (*types.ScanRequest, error) {
	entries, err := store.Iterate()
	if err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	for _, e := range entries {
		if e.ReportID == reportID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("report %s not in queue", reportID)
}

// buildConnectionData resolves the scanner endpoint from config into a
// types.ConnectionData. For a TCP endpoint it reuses a cached scanner
// client certificate from disk when one exists, isn't due for rotation,
// and still chains to the current root CA; every fork would otherwise pay
// for a fresh CA signature on a certificate that's good for days. A
// unix-socket endpoint carries no certificate material, since
// scanner.Connect skips TLS for it entirely.
func buildConnectionData(store storage.Store, cfg *config.Config, reportID string) (types.ConnectionData, error) {
	data := types.ConnectionData{
		Host:           cfg.Scanner.Host,
		Port:           cfg.Scanner.Port,
		UseRelayMapper: cfg.Scanner.UseRelayMapper,
	}
	if data.IsUnixSocket() {
		return data, nil
	}

	certDir, err := security.GetCertDir("scanner", scannerCertID(cfg.Scanner.Host))
	if err != nil {
		return data, fmt.Errorf("resolve scanner cert dir: %w", err)
	}

	key := security.DeriveKeyFromStoreID(cfg.StoreID)
	if err := security.SetStoreEncryptionKey(key); err != nil {
		return data, fmt.Errorf("set store encryption key: %w", err)
	}

	ca := security.NewCertAuthority(store)
	if err := ca.LoadFromStore(); err != nil {
		return data, fmt.Errorf("load CA: %w", err)
	}

	if pems, ok := loadCachedScannerCert(certDir, ca.GetRootCACert()); ok {
		data.CACert, data.ClientCert, data.ClientKey = pems.ca, pems.cert, pems.key
		return data, nil
	}

	cert, err := ca.IssueScannerCertificate(reportID, []string{cfg.Scanner.Host}, nil)
	if err != nil {
		return data, fmt.Errorf("issue scanner certificate: %w", err)
	}

	clientKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return data, fmt.Errorf("unexpected scanner certificate key type %T", cert.PrivateKey)
	}

	data.CACert = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.GetRootCACert()})
	data.ClientCert = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	data.ClientKey = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(clientKey)})

	if err := security.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
		log.Warn(fmt.Sprintf("buildConnectionData: cache CA cert: %v", err))
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		log.Warn(fmt.Sprintf("buildConnectionData: cache scanner cert: %v", err))
	}

	return data, nil
}

// scannerCertID turns a host into a filesystem-safe cache key.
func scannerCertID(host string) string {
	return strings.NewReplacer(":", "_", "/", "_").Replace(host)
}

type cachedCertPEMs struct {
	ca, cert, key []byte
}

// loadCachedScannerCert returns the cached scanner certificate from certDir
// if it exists, still has more than the rotation threshold left on it, and
// verifies against rootCA — a CA re-initialization invalidates the cache.
func loadCachedScannerCert(certDir string, rootCA []byte) (cachedCertPEMs, bool) {
	if !security.CertExists(certDir) {
		return cachedCertPEMs{}, false
	}

	tlsCert, err := security.LoadCertFromFile(certDir)
	if err != nil || security.CertNeedsRotation(tlsCert.Leaf) {
		return cachedCertPEMs{}, false
	}

	cachedCA, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return cachedCertPEMs{}, false
	}
	root, err := x509.ParseCertificate(rootCA)
	if err != nil || root.SerialNumber.Cmp(cachedCA.SerialNumber) != 0 {
		return cachedCertPEMs{}, false
	}
	if err := security.ValidateCertChain(tlsCert.Leaf, cachedCA); err != nil {
		return cachedCertPEMs{}, false
	}

	clientKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return cachedCertPEMs{}, false
	}

	return cachedCertPEMs{
		ca:   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cachedCA.Raw}),
		cert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: tlsCert.Leaf.Raw}),
		key:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(clientKey)}),
	}, true
}
