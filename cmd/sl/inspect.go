package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/sessionlens/internal/completeness"
	"github.com/zulandar/sessionlens/internal/inspector"
	"github.com/zulandar/sessionlens/internal/models"
)

func newInspectCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Show the reconciled view of a session",
		Long: `Reads a session's records, merges in fallback telemetry and any local
override patch, and prints the result. Sections whose records could not be
read are listed as degraded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, configPath, args[0], asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the view as JSON")
	return cmd
}

func runInspect(cmd *cobra.Command, configPath, sessionID string, asJSON bool) error {
	a, err := openApp(configPath, newLogger(cmd.ErrOrStderr(), slog.LevelWarn))
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.svc.GetSessionDetails(context.Background(), sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, d)
	}
	printDetails(out, d)
	return nil
}

func newCompletenessCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "completeness <session-id>",
		Short: "Show which response categories a session has completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompleteness(cmd, configPath, args[0], asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runCompleteness(cmd *cobra.Command, configPath, sessionID string, asJSON bool) error {
	a, err := openApp(configPath, newLogger(cmd.ErrOrStderr(), slog.LevelWarn))
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.svc.GetCompleteness(context.Background(), sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, st)
	}
	printCompleteness(out, st)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDetails(out io.Writer, d *inspector.Details) {
	s := d.Session
	fmt.Fprintf(out, "Session:     %s\n", s.ID)
	if s.PublicSessionID != "" {
		fmt.Fprintf(out, "Public ID:   %s\n", s.PublicSessionID)
	}
	fmt.Fprintf(out, "Mode:        %s", s.Mode)
	if modes := s.Modes(); len(modes) > 1 {
		fmt.Fprintf(out, " (%s)", strings.Join(modes, ", "))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Status:      %s\n", s.Status)
	fmt.Fprintf(out, "Started:     %s\n", formatTime(&s.StartedAt))
	fmt.Fprintf(out, "Completed:   %s\n", formatTime(s.CompletedAt))
	fmt.Fprintf(out, "Validation:  %s", s.ValidationStatus)
	if s.ValidatedBy != nil {
		fmt.Fprintf(out, " by %s at %s", *s.ValidatedBy, formatTime(s.ValidatedAt))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Suspicion:   %d", s.SuspicionScore)
	if len(s.SuspiciousFlags) > 0 {
		fmt.Fprintf(out, " [%s]", strings.Join(s.SuspiciousFlags, ", "))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Override:    %s", d.Override.State)
	if d.Override.Applied {
		fmt.Fprintf(out, " (saved %s", formatTime(d.Override.SavedAt))
		if d.Override.EditedBy != "" {
			fmt.Fprintf(out, " by %s", d.Override.EditedBy)
		}
		fmt.Fprint(out, ")")
	}
	fmt.Fprintln(out)
	if len(d.Degraded) > 0 {
		fmt.Fprintf(out, "Degraded:    %s\n", strings.Join(d.Degraded, ", "))
	}

	fmt.Fprintln(out)
	printCompleteness(out, d.Completeness)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Responses:")
	for _, cat := range models.Categories {
		rows := d.Responses[cat]
		fmt.Fprintf(out, "  %s (%d)\n", cat, len(rows))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, r := range rows {
			fmt.Fprintf(w, "    %s\t%s\n", r.QuestionID, truncate(r.Answer, 60))
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Timing (total %s):\n", formatDuration(d.Timing.TotalSeconds))
	if len(d.Timing.Groups) == 0 {
		fmt.Fprintln(out, "  none")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  KEY\tTITLE\tVISITS\tDURATION")
		for _, g := range d.Timing.Groups {
			title := g.Title
			if g.Page {
				title += " (page)"
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", g.Key, truncate(title, 40), len(g.EntryIDs), formatDuration(g.TotalSeconds))
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Dialogue (%d turns):\n", len(d.Dialogue))
	for _, t := range d.Dialogue {
		ts := t.Timestamp
		marker := ""
		if t.Source == models.SourceFallback {
			marker = " *"
		}
		fmt.Fprintf(out, "  [%s] %s%s: %s\n", formatTime(&ts), t.Role, marker, truncate(t.Content, 70))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Ratings (%d):\n", len(d.Ratings))
	if len(d.Ratings) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  SCENARIO\tRATING\tCOMMENT")
		for _, r := range d.Ratings {
			fmt.Fprintf(w, "  %s\t%d\t%s\n", r.ScenarioID, r.Rating, truncate(r.Comment, 50))
		}
		w.Flush()
	}
}

func printCompleteness(out io.Writer, st completeness.Status) {
	verdict := "incomplete"
	if st.Complete {
		verdict = "complete"
	}
	fmt.Fprintf(out, "Completeness: %s\n", verdict)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  CATEGORY\tPRESENT\tANSWERED\tEXPECTED\tBASIS\tMISSING")
	for _, cat := range models.Categories {
		c := st.ByName(cat)
		missing := "-"
		if len(c.Missing) > 0 {
			missing = strings.Join(c.Missing, ", ")
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\t%d\t%s\t%s\n", cat, yesNo(c.Present), c.Answered, c.Expected, c.Basis, missing)
	}
	w.Flush()
}
