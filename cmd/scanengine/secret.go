package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnscan/scanengine/pkg/config"
	"github.com/vulnscan/scanengine/pkg/security"
	"github.com/vulnscan/scanengine/pkg/storage"
)

// secretCmd manages the credential blobs a Task's Credentials field
// (SSH/SMB/ESXi/SNMP/Krb5) references by opaque id. The store holds them
// encrypted; `secret show` decrypts one and prints it base64-encoded.
// Nothing resolves a reference into real LSC credential material for the
// scanner.
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage encrypted credential blobs referenced by task credentials",
}

var secretCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Encrypt data from stdin and store it as a named secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, sm, err := openSecretsManager(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		plaintext, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read secret data from stdin: %w", err)
		}

		secret, err := sm.CreateSecret(args[0], plaintext)
		if err != nil {
			return fmt.Errorf("encrypt secret: %w", err)
		}
		if err := store.SaveSecret(secret); err != nil {
			return fmt.Errorf("save secret: %w", err)
		}

		fmt.Printf("✓ Secret %q stored with id %s\n", args[0], secret.ID)
		return nil
	},
}

var secretShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Decrypt and print a stored secret's data, base64-encoded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, sm, err := openSecretsManager(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		secret, err := store.GetSecret(args[0])
		if err != nil {
			return fmt.Errorf("load secret: %w", err)
		}
		plaintext, err := sm.GetSecretData(secret)
		if err != nil {
			return fmt.Errorf("decrypt secret: %w", err)
		}

		fmt.Printf("name: %s\n", secret.Name)
		fmt.Printf("data: %s\n", base64.StdEncoding.EncodeToString(plaintext))
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secret ids and names",
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

		secrets, err := store.ListSecrets()
		if err != nil {
			return fmt.Errorf("list secrets: %w", err)
		}
		for _, s := range secrets {
			fmt.Printf("%-24s %s\n", s.ID, s.Name)
		}
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored secret",
	Args:  cobra.ExactArgs(1),
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

		if err := store.DeleteSecret(args[0]); err != nil {
			return fmt.Errorf("delete secret: %w", err)
		}
		fmt.Printf("✓ Secret %s deleted\n", args[0])
		return nil
	},
}

// openSecretsManager opens the store and derives a SecretsManager keyed off
// the same store-identity key the CA uses, so every process touching one
// BoltDB file encrypts/decrypts secrets consistently without persisting the
// key itself.
func openSecretsManager(cmd *cobra.Command) (config.Config, *storage.BoltStore, *security.SecretsManager, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.StorePath, 5*time.Second)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open store: %w", err)
	}
	sm, err := security.NewSecretsManager(security.DeriveKeyFromStoreID(cfg.StoreID))
	if err != nil {
		store.Close()
		return cfg, nil, nil, fmt.Errorf("create secrets manager: %w", err)
	}
	return cfg, store, sm, nil
}

func init() {
	secretCmd.AddCommand(secretCreateCmd, secretShowCmd, secretListCmd, secretDeleteCmd)
}
