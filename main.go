package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mint-desk/pkg/config"
	"mint-desk/pkg/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	port      string
	rulesFile string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "mint-desk",
	Short: "Storefront backend and operator dashboard for an NFT claim sale",
	Long: `mint-desk records claim submissions from the storefront, assigns
sequential token IDs and reconciles them against the participant roster so
operators can see who has claimed, paid or finished KYC.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("rules") {
			cfg.RulesFile = rulesFile
		}
		if verbose {
			cfg.Verbose = true
		}

		logger, err = logging.New(cfg.Verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "roster and rules YAML file (overrides MINT_DESK_RULES_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	serveCmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the view as JSON")

	rootCmd.AddCommand(serveCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
