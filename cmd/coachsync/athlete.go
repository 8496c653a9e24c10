package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coachsync/internal/store"
)

var (
	athleteID       int64
	athleteName     string
	athleteTimezone string
)

var athleteCmd = &cobra.Command{
	Use:   "athlete",
	Short: "Manage athletes",
}

var athleteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an athlete",
	RunE: func(cmd *cobra.Command, args []string) error {
		if athleteID == 0 {
			return fmt.Errorf("--id is required")
		}
		if athleteTimezone != "" {
			if _, err := time.LoadLocation(athleteTimezone); err != nil {
				return fmt.Errorf("unknown timezone %q", athleteTimezone)
			}
		}

		_, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.UpsertAthlete(&store.Athlete{
			ID:       athleteID,
			Name:     athleteName,
			Timezone: athleteTimezone,
		}); err != nil {
			return fmt.Errorf("storing athlete: %w", err)
		}
		fmt.Printf("Athlete %d saved\n", athleteID)
		fmt.Printf("Connect Strava at: /connect?athlete_id=%d\n", athleteID)
		return nil
	},
}

var athleteTimezoneCmd = &cobra.Command{
	Use:   "timezone <id> <iana-zone>",
	Short: "Update an athlete's timezone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid athlete id %q", args[0])
		}
		if _, err := time.LoadLocation(args[1]); err != nil {
			return fmt.Errorf("unknown timezone %q", args[1])
		}

		_, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SetAthleteTimezone(id, args[1]); err != nil {
			return err
		}
		fmt.Printf("Athlete %d timezone set to %s\n", id, args[1])
		return nil
	},
}

func init() {
	athleteAddCmd.Flags().Int64Var(&athleteID, "id", 0, "athlete id")
	athleteAddCmd.Flags().StringVar(&athleteName, "name", "", "athlete name")
	athleteAddCmd.Flags().StringVar(&athleteTimezone, "timezone", "", "IANA timezone, e.g. Australia/Brisbane")
	athleteCmd.AddCommand(athleteAddCmd, athleteTimezoneCmd)
	rootCmd.AddCommand(athleteCmd)
}
