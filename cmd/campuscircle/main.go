package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "campuscircle",
		Short: "CampusCircle - campus social platform CLI",
		Long: `CampusCircle command line client.
Provides direct messaging over the realtime channel with REST persistence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return initClients()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (overrides the credential store)")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "user", "", "username (overrides CAMPUSCIRCLE_USERNAME)")

	rootCmd.AddCommand(
		chatCmd(),
		conversationsCmd(),
		sendCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()
			fmt.Printf("  API URL:    %s\n", cfg.APIURL)
			fmt.Printf("  WS URL:     %s\n", cfg.WSURL)
			fmt.Printf("  Username:   %s\n", cfg.Username)
			fmt.Printf("  Token:      %s\n", maskSecret(cfg.Token))
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  CAMPUSCIRCLE_API_URL, CAMPUSCIRCLE_WS_URL")
			fmt.Println("  CAMPUSCIRCLE_USERNAME, CAMPUSCIRCLE_TOKEN")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("campuscircle %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
