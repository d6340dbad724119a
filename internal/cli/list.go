package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"habit-tracker/internal/model"
)

// OwnerHabits is one owner's section of the list output.
type OwnerHabits struct {
	Owner  string        `json:"owner"`
	Habits []model.Habit `json:"habits"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored habits with their current streaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), rootOpts, owner, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "only this owner (Telegram user id); default all users")

	return cmd
}

func runList(ctx context.Context, opts *RootOptions, owner string, w io.Writer) error {
	app, err := OpenApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	owners := []string{owner}
	if owner == "" {
		if owners, err = app.Owners(ctx); err != nil {
			return err
		}
	}

	result := make([]OwnerHabits, 0, len(owners))
	for _, o := range owners {
		habits, err := app.Store.List(ctx, o)
		if err != nil {
			return fmt.Errorf("list habits of %s: %w", o, err)
		}
		result = append(result, OwnerHabits{Owner: o, Habits: habits})
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeHabitTable(w, result)
}

func writeHabitTable(w io.Writer, result []OwnerHabits) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tNAME\tCATEGORY\tSTREAK\tREMINDER\tLAST DONE")
	for _, section := range result {
		for _, h := range section.Habits {
			reminder := "-"
			if h.ReminderEnabled && h.ReminderTime != nil {
				reminder = h.ReminderTime.String()
				if h.NotificationID == "" {
					reminder += " (paused)"
				}
			}
			last := "-"
			if n := len(h.CompletedDates); n > 0 {
				last = h.CompletedDates[n-1]
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", section.Owner, h.Name, h.Category, h.Streak, reminder, last)
		}
	}
	return tw.Flush()
}
