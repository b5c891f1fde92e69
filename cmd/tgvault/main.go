package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tgvault/tgvault/internal/config"
	"github.com/tgvault/tgvault/internal/db"
	"github.com/tgvault/tgvault/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "tgvault",
		Short: "File vault backed by a Telegram channel",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
