package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the WhatsApp credential store",
		Long: `Creates a compressed .tar.gz archive of the credential store so a paired
session can be moved to another host without scanning again. Stop the
gateway first so the database is consistent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout()
			if _, err := os.Stat(layout.AuthDir); err != nil {
				return fmt.Errorf("no credential store at %s", layout.AuthDir)
			}

			if outputPath == "" {
				ts := time.Now().Format("20060102-150405")
				outputPath = fmt.Sprintf("wagateway-backup-%s.tar.gz", ts)
			}

			out, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("cannot create backup file: %w", err)
			}
			files, err := layout.Archive(out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(outputPath)
				return fmt.Errorf("backup failed: %w", err)
			}
			if len(files) == 0 {
				os.Remove(outputPath)
				return fmt.Errorf("no files to back up in %s", layout.AuthDir)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(files))
			for _, f := range files {
				info, _ := os.Stat(filepath.Join(layout.Root, f))
				size := int64(0)
				if info != nil {
					size = info.Size()
				}
				fmt.Printf("  - %s (%s)\n", f, humanSize(size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ./wagateway-backup-<timestamp>.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore the credential store from a backup archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: wagateway restore <file.tar.gz>")
			}

			layout := resolveLayout()
			if !force {
				if _, err := os.Stat(layout.CredentialDB()); err == nil {
					fmt.Printf("WARNING: This will overwrite the existing session.\n")
					fmt.Printf("  Store: %s\n", layout.CredentialDB())
					fmt.Printf("Use --force to skip this warning.\n")
					return fmt.Errorf("restore aborted (use --force to proceed)")
				}
			}

			in, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			if err := layout.Prepare(); err != nil {
				return err
			}
			restored, err := layout.Restore(in)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", inputPath)
			fmt.Printf("Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing session without warning")
	return cmd
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
