package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Maphikza/iqube-ops/internal/config"
	"github.com/Maphikza/iqube-ops/internal/logger"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "iqube-ops",
	Short: "iQube operations console",
	Long: `Operate iQube anchoring: query anchor and dual-lock status, submit data
for anchoring, send Bitcoin testnet transactions, mint on EVM chains and
serve the explorer proxy and ops API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load before the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(anchorNowCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(dvnCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(btcCmd)
	rootCmd.AddCommand(evmCmd)
	rootCmd.AddCommand(solCmd)
}

func initConfig() {
	if err := config.LoadEnv(envFile); err != nil {
		log.Printf("Error loading environment file: %v", err)
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logger.Init(viper.GetString("log_file"), viper.GetString("log_level")); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
