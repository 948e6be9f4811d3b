package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chloe-lh/Social-Gold/internal/config"
	"github.com/Chloe-lh/Social-Gold/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "goldennode",
	Short: "Run and administer one node of the Golden federated network",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the node's yaml config")
	rootCmd.AddCommand(serveCmd, authorCmd, nodeCmd)
}

// openStore picks the storage backend the config names.
func openStore(cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return store.OpenPostgres(cfg.PostgresDSN())
	default:
		return store.OpenSQLite(cfg.Storage.Path)
	}
}
