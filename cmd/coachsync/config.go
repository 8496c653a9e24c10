package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coachsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := config.CreateExample(path); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", path)
		fmt.Println("Fill in your Strava API credentials and webhook verify token.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		fmt.Printf("Server addr:      %s\n", cfg.Server.Addr)
		fmt.Printf("Public URL:       %s\n", cfg.Server.PublicURL)
		fmt.Printf("Strava client:    %s\n", cfg.Strava.ClientID)
		fmt.Printf("Database path:    %s\n", cfg.Database.Path)
		fmt.Printf("Default timezone: %s\n", cfg.Sync.DefaultTimezone)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
