package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/sessionlens/internal/config"
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/payload"
	"github.com/zulandar/sessionlens/internal/store"
)

func newSnapshotCmd() *cobra.Command {
	var (
		configPath   string
		timingFile   string
		dialogueFile string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <session-id>",
		Short: "Record a telemetry snapshot in a session's response rows",
		Long: `Encodes slide timing and dialogue arrays (JSON files) into batched
meta-question response rows, the same way study clients write their
fallback snapshots. Used to backfill sessions whose primary telemetry
was lost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, configPath, args[0], timingFile, dialogueFile)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to sessionlens config file")
	cmd.Flags().StringVar(&timingFile, "timing", "", "JSON array of slide timing entries")
	cmd.Flags().StringVar(&dialogueFile, "dialogue", "", "JSON array of dialogue turns")
	return cmd
}

func runSnapshot(cmd *cobra.Command, configPath, sessionID, timingFile, dialogueFile string) error {
	if timingFile == "" && dialogueFile == "" {
		return fmt.Errorf("nothing to record: pass --timing and/or --dialogue")
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	st, err := store.New(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	at := time.Now()

	var rows []models.Response
	if timingFile != "" {
		var entries []models.TimingEntry
		if err := readJSONFile(timingFile, &entries); err != nil {
			return err
		}
		encoded, err := encodeSnapshot(cfg, sessionID, payload.SlideTimingID, entries, at)
		if err != nil {
			return err
		}
		rows = append(rows, encoded...)
		fmt.Fprintf(out, "Encoded %d timing entries into %d rows\n", len(entries), len(encoded))
	}
	if dialogueFile != "" {
		var turns []models.DialogueTurn
		if err := readJSONFile(dialogueFile, &turns); err != nil {
			return err
		}
		encoded, err := encodeSnapshot(cfg, sessionID, payload.DialogueLogID, turns, at)
		if err != nil {
			return err
		}
		rows = append(rows, encoded...)
		fmt.Fprintf(out, "Encoded %d dialogue turns into %d rows\n", len(turns), len(encoded))
	}

	if err := st.AddResponses(context.Background(), sessionID, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded snapshot for %s\n", sessionID)
	return nil
}

func encodeSnapshot(cfg *config.Config, sessionID, baseID string, items any, at time.Time) ([]models.Response, error) {
	return payload.Encode(baseID, items, payload.EncodeOpts{
		SessionID: sessionID,
		PartSize:  cfg.Payload.PartSize,
		At:        at,
	})
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
