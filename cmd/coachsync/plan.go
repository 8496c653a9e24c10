package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coachsync/internal/localday"
	"coachsync/internal/service"
	"coachsync/internal/store"
)

var (
	planAthleteID  int64
	planDay        string
	planTime       string
	planDiscipline string
	planMinutes    int
	planKm         float64
	planFrom       string
	planTo         string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage planned training sessions",
}

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Plan a session on a local calendar day",
	RunE: func(cmd *cobra.Command, args []string) error {
		if planAthleteID == 0 || planDay == "" || planDiscipline == "" {
			return fmt.Errorf("--athlete, --day and --discipline are required")
		}
		if _, _, _, err := localday.ParseKey(planDay); err != nil {
			return err
		}
		if planTime != "" {
			if _, err := time.Parse("15:04", planTime); err != nil {
				return fmt.Errorf("invalid start time %q, want HH:MM", planTime)
			}
		}

		_, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		entry := &store.PlannedEntry{
			ID:         uuid.NewString(),
			AthleteID:  planAthleteID,
			Day:        planDay,
			StartTime:  planTime,
			Discipline: planDiscipline,
		}
		if planMinutes > 0 {
			entry.DurationMinutes = &planMinutes
		}
		if planKm > 0 {
			meters := planKm * 1000
			entry.DistanceMeters = &meters
		}

		if err := db.CreatePlannedEntry(entry); err != nil {
			return fmt.Errorf("storing entry: %w", err)
		}
		fmt.Printf("Planned %s on %s (%s)\n", entry.Discipline, entry.Day, entry.ID)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a range of the resolved calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		if planAthleteID == 0 {
			return fmt.Errorf("--athlete is required")
		}
		from, to := planFrom, planTo
		if from == "" || to == "" {
			var err error
			from, to, err = service.WeekRange(time.Now().UTC().Format(localday.KeyFormat))
			if err != nil {
				return err
			}
		}

		cfg, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		query := service.NewQueryService(db, cfg.Sync.DefaultTimezone)
		resolved, err := query.ResolveRange(planAthleteID, from, to, time.Now())
		if err != nil {
			return err
		}

		if len(resolved) == 0 {
			fmt.Printf("Nothing on %s..%s\n", from, to)
			return nil
		}
		for _, slot := range resolved {
			switch {
			case slot.Planned != nil && slot.Completed != nil:
				fmt.Printf("%s  %-9s %-10s done (%s)\n",
					slot.Day, slot.Planned.Discipline, slot.Planned.Status, slot.Completed.Source)
			case slot.Planned != nil && slot.Missed:
				fmt.Printf("%s  %-9s missed     %s\n",
					slot.Day, slot.Planned.Discipline, slot.Planned.ID)
			case slot.Planned != nil:
				fmt.Printf("%s  %-9s %-10s %s\n",
					slot.Day, slot.Planned.Discipline, slot.Planned.Status, slot.Planned.ID)
			default:
				fmt.Printf("%s  %-9s ad-hoc     (%s)\n",
					slot.Day, slot.Completed.Discipline, slot.Completed.Source)
			}
		}
		return nil
	},
}

var planSkipCmd = &cobra.Command{
	Use:   "skip <entry-id>",
	Short: "Mark a planned session as skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.UpdatePlannedEntryStatus(args[0], store.StatusSkipped); err != nil {
			return err
		}
		fmt.Printf("Entry %s skipped\n", args[0])
		return nil
	},
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Soft-delete a planned session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SoftDeletePlannedEntry(args[0]); err != nil {
			return err
		}
		fmt.Printf("Entry %s deleted\n", args[0])
		return nil
	},
}

func init() {
	planAddCmd.Flags().Int64Var(&planAthleteID, "athlete", 0, "athlete id")
	planAddCmd.Flags().StringVar(&planDay, "day", "", "local day, YYYY-MM-DD")
	planAddCmd.Flags().StringVar(&planTime, "time", "", "local start time, HH:MM")
	planAddCmd.Flags().StringVar(&planDiscipline, "discipline", "", "run, bike, swim, ...")
	planAddCmd.Flags().IntVar(&planMinutes, "minutes", 0, "planned duration in minutes")
	planAddCmd.Flags().Float64Var(&planKm, "km", 0, "planned distance in kilometers")

	planListCmd.Flags().Int64Var(&planAthleteID, "athlete", 0, "athlete id")
	planListCmd.Flags().StringVar(&planFrom, "from", "", "first day, YYYY-MM-DD (default this week)")
	planListCmd.Flags().StringVar(&planTo, "to", "", "last day, YYYY-MM-DD")

	planCmd.AddCommand(planAddCmd, planListCmd, planSkipCmd, planDeleteCmd)
	rootCmd.AddCommand(planCmd)
}
