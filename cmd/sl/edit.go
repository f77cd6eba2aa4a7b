package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/sessionlens/internal/inspector"
)

func newEditCmd() *cobra.Command {
	var (
		configPath string
		file       string
		editedBy   string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "edit <session-id>",
		Short: "Apply administrative edits to a session",
		Long: `Reads a JSON edit set (use "-" for stdin) and saves it. When the record
store cannot be written, the edits are kept as a local override patch and
shown on this machine until a later save succeeds or the override is
cleared. Each save replaces any earlier local patch for the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, configPath, args[0], file, editedBy, reason)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON edit set (required)")
	cmd.Flags().StringVar(&editedBy, "by", "", "administrator making the change")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the change")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runEdit(cmd *cobra.Command, configPath, sessionID, file, editedBy, reason string) error {
	edits, err := readEdits(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}
	if editedBy != "" {
		edits.EditedBy = editedBy
	}
	if reason != "" {
		edits.Reason = reason
	}

	a, err := openApp(configPath, newLogger(cmd.ErrOrStderr(), slog.LevelWarn))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.SaveEdits(context.Background(), sessionID, edits)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch res.Outcome {
	case inspector.OutcomeCommitted:
		fmt.Fprintf(out, "Saved edits for %s\n", sessionID)
	case inspector.OutcomeLocallyCached:
		fmt.Fprintln(out, res.Notice)
		fmt.Fprintf(out, "Record store error: %s\n", res.RemoteError)
	}
	if res.Imputed > 0 {
		fmt.Fprintf(out, "Inserted %d owner-imputed timing entries\n", res.Imputed)
	}
	return nil
}

func readEdits(stdin io.Reader, file string) (inspector.Edits, error) {
	var edits inspector.Edits
	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return edits, fmt.Errorf("open edits: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edits); err != nil {
		return edits, fmt.Errorf("parse edits: %w", err)
	}
	return edits, nil
}
