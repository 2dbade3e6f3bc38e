package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/security"
	"github.com/vulnscan/scanengine/pkg/storage"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Inspect and manage cached TLS certificates",
}

var certStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached scanner client certificate's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		certDir, err := security.GetCertDir("scanner", scannerCertID(cfg.Scanner.Host))
		if err != nil {
			return fmt.Errorf("resolve cert dir: %w", err)
		}

		if !security.CertExists(certDir) {
			fmt.Printf("No cached certificate for scanner %s (%s)\n", cfg.Scanner.Host, certDir)
			return nil
		}

		tlsCert, err := security.LoadCertFromFile(certDir)
		if err != nil {
			return fmt.Errorf("load cached certificate: %w", err)
		}

		info := security.GetCertInfo(tlsCert.Leaf)
		fmt.Printf("Scanner certificate (%s)\n", certDir)
		for _, k := range []string{"subject", "issuer", "serial_number", "not_before", "not_after", "key_usage", "ext_key_usage"} {
			fmt.Printf("  %-14s %v\n", k+":", info[k])
		}
		fmt.Printf("  %-14s %s\n", "expires in:", security.GetCertTimeRemaining(tlsCert.Leaf).Round(time.Second))
		if security.CertNeedsRotation(tlsCert.Leaf) {
			fmt.Println("  needs rotation: yes (run `cert rotate`)")
		} else {
			fmt.Println("  needs rotation: no")
		}
		return nil
	},
}

var certRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Discard the cached scanner certificate, forcing reissue on the next scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		certDir, err := security.GetCertDir("scanner", scannerCertID(cfg.Scanner.Host))
		if err != nil {
			return fmt.Errorf("resolve cert dir: %w", err)
		}
		if err := security.RemoveCerts(certDir); err != nil {
			return fmt.Errorf("remove cached certificate: %w", err)
		}
		fmt.Printf("✓ Cached certificate removed for %s\n", cfg.Scanner.Host)
		return nil
	},
}

var certIssueOperatorCmd = &cobra.Command{
	Use:   "issue-operator <client-id>",
	Short: "Issue and cache an mTLS client certificate for an operator identity",
	Long: `issue-operator signs a short-lived client certificate off the engine's
CA and caches it under the CLI certificate directory, for operators or
external tooling that need to authenticate against a future API surface.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		key := security.DeriveKeyFromStoreID(cfg.StoreID)
		if err := security.SetStoreEncryptionKey(key); err != nil {
			return fmt.Errorf("set store encryption key: %w", err)
		}

		ca := security.NewCertAuthority(store)
		if err := ca.LoadFromStore(); err != nil {
			return fmt.Errorf("load CA: %w", err)
		}

		cert, err := ca.IssueClientCertificate(args[0])
		if err != nil {
			return fmt.Errorf("issue client certificate: %w", err)
		}

		certDir, err := security.GetCLICertDir()
		if err != nil {
			return fmt.Errorf("resolve CLI cert dir: %w", err)
		}
		if err := security.SaveCACertToFile(ca.GetRootCACert(), certDir); err != nil {
			return fmt.Errorf("cache CA cert: %w", err)
		}
		if err := security.SaveCertToFile(cert, certDir); err != nil {
			return fmt.Errorf("cache client cert: %w", err)
		}

		fmt.Printf("✓ Operator certificate for %q cached at %s\n", args[0], certDir)
		return nil
	},
}

func init() {
	certCmd.AddCommand(certStatusCmd, certRotateCmd, certIssueOperatorCmd)
}
