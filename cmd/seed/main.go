// Command seed resets the user collection to a known set of accounts and can
// load a catalog CSV through the regular ingestion pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/bootstrap"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/pkg/logger"
)

var (
	seedCSV      string
	seedPassword string
	seedAllowMem bool
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Wipe users, create the admin and sample contributors, optionally ingest a CSV",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.Flags().StringVar(&seedCSV, "csv", "", "CSV file to ingest after seeding users")
	rootCmd.Flags().StringVar(&seedPassword, "password", "password123", "Password for every seeded account")
	rootCmd.Flags().BoolVar(&seedAllowMem, "allow-memory", false, "Run against in-memory stores when MONGODB_URI is unset")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger.Init(os.Getenv("LOG_LEVEL"))
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.MongoDB.URI == "" && !seedAllowMem {
		return fmt.Errorf("MONGODB_URI is not set; pass --allow-memory to seed a throwaway store")
	}
	st, err := bootstrap.OpenStores(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	var upload *ingest.Upload
	if seedCSV != "" {
		data, err := os.ReadFile(seedCSV)
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		upload = &ingest.Upload{FileName: filepath.Base(seedCSV), Data: data}
	}

	s := &seeder{
		stores:   st,
		policy:   authz.NewAllowList(cfg.Admin.Emails),
		admins:   cfg.Admin.Emails,
		password: seedPassword,
		out:      cmd.OutOrStdout(),
	}
	return s.run(ctx, upload)
}
