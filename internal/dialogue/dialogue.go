// Package dialogue merges the primary dialogue log with the transcript
// snapshot decoded from meta-question rows.
package dialogue

import (
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/payload"
)

type turnKey struct {
	role      string
	content   string
	timestamp int64
	slideID   string
}

func keyOf(t models.DialogueTurn) turnKey {
	return turnKey{role: t.Role, content: t.Content, timestamp: t.Timestamp.UnixNano(), slideID: t.SlideID}
}

// Reconcile returns primary followed by every fallback turn that has no
// exact (role, content, timestamp, slide) twin in primary. With an empty
// primary the fallback is returned as is.
func Reconcile(primary, fallback []models.DialogueTurn) []models.DialogueTurn {
	if len(primary) == 0 {
		out := make([]models.DialogueTurn, len(fallback))
		copy(out, fallback)
		return out
	}

	seen := make(map[turnKey]bool, len(primary))
	out := make([]models.DialogueTurn, 0, len(primary)+len(fallback))
	for _, t := range primary {
		seen[keyOf(t)] = true
		out = append(out, t)
	}
	for _, t := range fallback {
		if seen[keyOf(t)] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FallbackTurns decodes the transcript snapshot carried in a session's
// response rows.
func FallbackTurns(sessionID string, rows []models.Response) ([]models.DialogueTurn, payload.DecodeInfo) {
	turns, info := payload.Decode[models.DialogueTurn](rows, payload.DialogueLogID)
	for i := range turns {
		turns[i].ID = payload.FallbackID(sessionID, i)
		turns[i].SessionID = sessionID
		turns[i].Source = models.SourceFallback
	}
	return turns, info
}
