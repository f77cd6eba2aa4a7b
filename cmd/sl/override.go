package main

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage locally cached edits",
		Long: `Edits that could not be written to the record store are kept as local
override patches and shown on top of the stored records on this machine.`,
	}

	cmd.AddCommand(newOverrideListCmd())
	cmd.AddCommand(newOverrideClearCmd())
	return cmd
}

func newOverrideListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions with a local override patch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverrideList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	return cmd
}

func runOverrideList(cmd *cobra.Command, configPath string) error {
	a, err := openApp(configPath, newLogger(cmd.ErrOrStderr(), slog.LevelWarn))
	if err != nil {
		return err
	}
	defer a.Close()

	patches, err := a.svc.ListOverrides()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(patches) == 0 {
		fmt.Fprintln(out, "No local overrides.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSAVED\tEDITED BY\tRESPONSES\tDIALOGUE\tTIMING\tRATINGS\tREASON")
	for _, p := range patches {
		editedBy := p.EditedBy
		if editedBy == "" {
			editedBy = "-"
		}
		saved := p.SavedAt
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			p.SessionID, formatTime(&saved), editedBy,
			len(p.Responses), len(p.Dialogue), len(p.Timing), len(p.Ratings),
			truncate(p.Reason, 40))
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d override(s)\n", len(patches))
	return nil
}

func newOverrideClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Discard the local override patch for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverrideClear(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	return cmd
}

func runOverrideClear(cmd *cobra.Command, configPath, sessionID string) error {
	a, err := openApp(configPath, newLogger(cmd.ErrOrStderr(), slog.LevelWarn))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.ClearLocalOverride(context.Background(), sessionID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared local override for %s\n", sessionID)
	return nil
}
