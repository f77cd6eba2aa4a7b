// Package payload encodes JSON telemetry arrays into the narrow answer-row
// channel and reassembles them from the rows that survived.
//
// A payload is stored either as a single direct row under its base question
// id, or as ordered parts whose question ids follow
//
//	<baseId>__batch_<batchId>__part_<n>
//
// Decoding never fails loudly: any payload that cannot be reassembled yields
// an empty result.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zulandar/sessionlens/internal/models"
)

// Meta-question base ids.
const (
	SlideTimingID = "meta_slide_timing"
	DialogueLogID = "meta_dialogue_log"
)

// DefaultPartSize is the maximum answer length of one part row.
const DefaultPartSize = 900

const (
	batchMarker = "__batch_"
	partMarker  = "__part_"
)

var metaIDs = map[string]bool{
	SlideTimingID: true,
	DialogueLogID: true,
}

// IsMetaQuestion reports whether a question id carries encoded telemetry
// rather than a participant answer.
func IsMetaQuestion(questionID string) bool {
	if metaIDs[questionID] {
		return true
	}
	base, _, _, ok := ParsePartID(questionID)
	return ok && metaIDs[base]
}

// PartID builds the question id for part n of a batch.
func PartID(baseID, batchID string, n int) string {
	return baseID + batchMarker + batchID + partMarker + strconv.Itoa(n)
}

// ParsePartID splits a batched question id into its components.
func ParsePartID(questionID string) (baseID, batchID string, n int, ok bool) {
	bi := strings.Index(questionID, batchMarker)
	if bi <= 0 {
		return "", "", 0, false
	}
	rest := questionID[bi+len(batchMarker):]
	pi := strings.LastIndex(rest, partMarker)
	if pi <= 0 {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(rest[pi+len(partMarker):])
	if err != nil || n < 0 {
		return "", "", 0, false
	}
	return questionID[:bi], rest[:pi], n, true
}

// FallbackID is the deterministic record id given to the i-th item decoded
// from a session's snapshot.
func FallbackID(sessionID string, i int) string {
	return fmt.Sprintf("fallback:%s:%d", sessionID, i)
}

// IsFallbackID reports whether id was produced by FallbackID.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, "fallback:")
}

// EncodeOpts holds optional parameters for Encode.
type EncodeOpts struct {
	SessionID string
	Category  string    // defaults to post
	BatchID   string    // defaults to a new UUID
	PartSize  int       // defaults to DefaultPartSize
	At        time.Time // defaults to now
}

// Encode serializes items and splits the JSON into part rows ready to insert.
func Encode(baseID string, items any, opts EncodeOpts) ([]models.Response, error) {
	if baseID == "" {
		return nil, fmt.Errorf("payload: base id is required")
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("payload: marshal %s: %w", baseID, err)
	}
	if opts.BatchID == "" {
		opts.BatchID = uuid.NewString()
	}
	if opts.PartSize <= 0 {
		opts.PartSize = DefaultPartSize
	}
	if opts.Category == "" {
		opts.Category = models.CategoryPost
	}
	if opts.At.IsZero() {
		opts.At = time.Now()
	}

	parts := split(string(data), opts.PartSize)
	rows := make([]models.Response, len(parts))
	for i, p := range parts {
		rows[i] = models.Response{
			ID:         uuid.NewString(),
			SessionID:  opts.SessionID,
			Category:   opts.Category,
			QuestionID: PartID(baseID, opts.BatchID, i),
			Answer:     p,
			CreatedAt:  opts.At,
		}
	}
	return rows, nil
}

// split cuts s into chunks of at most size bytes without breaking runes.
func split(s string, size int) []string {
	if len(s) <= size {
		return []string{s}
	}
	var parts []string
	for len(s) > 0 {
		end := size
		if end >= len(s) {
			parts = append(parts, s)
			break
		}
		for end > 0 && !utf8.RuneStart(s[end]) {
			end--
		}
		if end == 0 {
			// size is smaller than one rune; emit the whole rune.
			_, w := utf8.DecodeRuneInString(s)
			end = w
		}
		parts = append(parts, s[:end])
		s = s[end:]
	}
	return parts
}

// DecodeInfo describes which stored form a decode used.
type DecodeInfo struct {
	Source       string // "batch", "direct" or "" when nothing was found
	BatchID      string
	Parts        int
	MissingParts []int
	LatestAt     time.Time
	Malformed    bool
}

type batch struct {
	id     string
	latest time.Time
	parts  map[int]string
}

// Assemble picks the stored form of baseID and returns its raw JSON text.
// The batch whose newest row is most recent wins; a direct row wins over
// batches only when it is strictly newer.
func Assemble(rows []models.Response, baseID string) (string, DecodeInfo) {
	var (
		direct    *models.Response
		batches   = make(map[string]*batch)
		batchKeys []string
	)
	for i := range rows {
		r := &rows[i]
		if r.QuestionID == baseID {
			if direct == nil || r.CreatedAt.After(direct.CreatedAt) {
				direct = r
			}
			continue
		}
		base, id, n, ok := ParsePartID(r.QuestionID)
		if !ok || base != baseID {
			continue
		}
		b, exists := batches[id]
		if !exists {
			b = &batch{id: id, parts: make(map[int]string)}
			batches[id] = b
			batchKeys = append(batchKeys, id)
		}
		if r.CreatedAt.After(b.latest) {
			b.latest = r.CreatedAt
		}
		b.parts[n] = r.Answer
	}

	var chosen *batch
	for _, id := range batchKeys {
		b := batches[id]
		if chosen == nil || b.latest.After(chosen.latest) {
			chosen = b
		}
	}

	if chosen == nil || (direct != nil && direct.CreatedAt.After(chosen.latest)) {
		if direct == nil {
			return "", DecodeInfo{}
		}
		return direct.Answer, DecodeInfo{Source: "direct", Parts: 1, LatestAt: direct.CreatedAt}
	}

	idx := make([]int, 0, len(chosen.parts))
	for n := range chosen.parts {
		idx = append(idx, n)
	}
	sort.Ints(idx)

	info := DecodeInfo{Source: "batch", BatchID: chosen.id, Parts: len(idx), LatestAt: chosen.latest}
	var sb strings.Builder
	next := 0
	for _, n := range idx {
		for ; next < n; next++ {
			info.MissingParts = append(info.MissingParts, next)
		}
		next = n + 1
		sb.WriteString(chosen.parts[n])
	}
	return sb.String(), info
}

// Decode reassembles baseID from rows and unmarshals it as a JSON array of T.
// Missing or malformed payloads yield an empty slice.
func Decode[T any](rows []models.Response, baseID string) ([]T, DecodeInfo) {
	raw, info := Assemble(rows, baseID)
	if strings.TrimSpace(raw) == "" {
		return []T{}, info
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		info.Malformed = true
		return []T{}, info
	}
	if out == nil {
		out = []T{}
	}
	return out, info
}
