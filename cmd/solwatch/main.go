package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/solwatch/core/buildinfo"
	corecmd "github.com/m3rciful/solwatch/core/cmd"
	coreconfig "github.com/m3rciful/solwatch/core/config"
	"github.com/m3rciful/solwatch/internal/app"
)

const defaultConfigPath = "config.yaml"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "solwatch",
	Short: "Solana wallet monitor and transfer bot for Telegram",
	Long: `solwatch watches Solana addresses on mainnet-beta, devnet, and testnet
and reports every balance change to the Telegram user who registered the
address. Users can also send SOL through a guided dialogue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Run(corecmd.Options{
			ConfigPath:        configPath,
			DefaultConfigPath: defaultConfigPath,
			LoadConfig:        loadConfig,
			Bootstrap: func(ctx context.Context, cfg coreconfig.Carrier) (corecmd.Application, error) {
				return app.New(ctx, cfg.(*app.Config), app.Overrides{})
			},
		})
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := corecmd.ResolveConfigPath(corecmd.Options{
			ConfigPath:        configPath,
			DefaultConfigPath: defaultConfigPath,
		})
		if err != nil {
			return err
		}
		cfg, err := app.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config ok: %s (networks: %v, journal: %t)\n",
			path, cfg.EnabledNetworks(), cfg.Database.Enabled())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "solwatch %s (commit %s, built %s)\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (falls back to CONFIG_PATH, then config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.AddCommand(checkConfigCmd, versionCmd)
}

// loadEnvFile applies the dotenv file without overriding variables already set.
func loadEnvFile() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func loadConfig(path string) (coreconfig.Carrier, error) {
	cfg, err := app.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("solwatch: %v", err)
		os.Exit(1)
	}
}
