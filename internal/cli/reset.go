package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type resetOptions struct {
	owner string
	all   bool
	yes   bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &resetOptions{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored habits and completion logs",
		Long: `Delete stored habits and completion logs of one owner or of all users.

Reminders live in the serve process; stop it first, it schedules only the
habits that still exist when it starts again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.owner, "owner", "o", "", "owner (Telegram user id) to reset")
	cmd.Flags().BoolVar(&opts.all, "all", false, "reset every known user")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "confirm the deletion")

	return cmd
}

func runReset(ctx context.Context, rootOpts *RootOptions, opts *resetOptions, w io.Writer) error {
	if (opts.owner == "") == !opts.all {
		return errors.New("specify exactly one of --owner or --all")
	}
	if !opts.yes {
		return errors.New("refusing to delete data without --yes")
	}

	app, err := OpenApp(ctx, rootOpts.cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	tracker := app.OfflineTracker()
	if !opts.all {
		if err := tracker.Reset(ctx, opts.owner); err != nil {
			return fmt.Errorf("reset %s: %w", opts.owner, err)
		}
		fmt.Fprintln(w, "reset 1 owner(s)")
		return nil
	}

	owners, err := app.Owners(ctx)
	if err != nil {
		return err
	}
	if err := tracker.ResetAll(ctx, owners); err != nil {
		return err
	}
	fmt.Fprintf(w, "reset %d owner(s)\n", len(owners))
	return nil
}
