package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"wagateway/internal/config"
	"wagateway/internal/session"
	"wagateway/internal/storage"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the gateway installation",
		Long: `Verifies the configuration, the storage tree, the credential store, the
listen port and backend reachability. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("wagateway doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config loads and validates
			cfg, err := config.Load(configPath)
			if err != nil {
				printFail("Config", err.Error())
				fmt.Printf("\nSet GUSTEAU_API_URL, RESTAURANT_ID and GATEWAY_TOKEN (or a .env file).\n")
				return fmt.Errorf("configuration invalid")
			}
			printPass("Config", "valid")
			passed++

			// 2. Storage tree
			layout := storage.NewLayout(cfg.StorageDir)
			if err := layout.Prepare(); err != nil {
				printFail("Storage", err.Error())
				failed++
			} else {
				printPass("Storage", layout.Root)
				passed++
			}

			// 3. Leftover browser locks
			stale := 0
			for _, name := range storage.LockArtifacts {
				if _, err := os.Lstat(filepath.Join(layout.ProfileDir, name)); err == nil {
					stale++
				}
			}
			if stale > 0 {
				printWarn("Profile locks", fmt.Sprintf("%d stale lock file(s); removed on next start", stale))
				warned++
			} else {
				printPass("Profile locks", "none")
				passed++
			}

			// 4. Credential store opens and migrates
			if paired, err := checkCredentialStore(layout.CredentialDB()); err != nil {
				printFail("Credential store", err.Error())
				failed++
			} else if !paired {
				printWarn("Credential store", "not paired yet; scan the QR code after starting")
				warned++
			} else {
				printPass("Credential store", "paired")
				passed++
			}

			// 5. Listen port
			if err := checkPort(cfg.Port); err != nil {
				printWarn("Port", fmt.Sprintf("port %d may be in use: %v", cfg.Port, err))
				warned++
			} else {
				printPass("Port", fmt.Sprintf(":%d available", cfg.Port))
				passed++
			}

			// 6. Backend reachable
			if err := checkBackend(cfg.BackendURL); err != nil {
				printWarn("Backend", err.Error())
				warned++
			} else {
				printPass("Backend", cfg.BackendURL)
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before starting the gateway.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nThe gateway should start but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
}

func checkCredentialStore(dbPath string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := session.OpenStore(ctx, dbPath, logger)
	if err != nil {
		return false, err
	}
	defer store.Close()

	device, err := store.Device(ctx)
	if err != nil {
		return false, err
	}
	return device.ID != nil, nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

// checkBackend dials the backend host; it does not call the webhook.
func checkBackend(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", host, err)
	}
	conn.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
