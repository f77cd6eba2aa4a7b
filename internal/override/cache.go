package override

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// State is a session's position in the save lifecycle.
type State string

const (
	StateClean             State = "clean"
	StatePendingRemote     State = "pending-remote"
	StateCommitted         State = "committed"
	StateLocallyOverridden State = "locally-overridden"
)

const keyPrefix = "override:"

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Cache stores at most one patch per session.
type Cache struct {
	kv KV

	mu     sync.Mutex
	states map[string]State
}

// NewCache wraps kv.
func NewCache(kv KV) (*Cache, error) {
	if kv == nil {
		return nil, fmt.Errorf("override: kv is required")
	}
	return &Cache{kv: kv, states: make(map[string]State)}, nil
}

// Begin marks a remote write for sessionID as in flight.
func (c *Cache) Begin(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[sessionID] = StatePendingRemote
}

// Commit records a successful remote write and drops any pending patch.
func (c *Cache) Commit(sessionID string) error {
	if err := c.kv.Delete(key(sessionID)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[sessionID] = StateCommitted
	return nil
}

// Save persists p, replacing any earlier patch for the same session.
func (c *Cache) Save(p Patch) error {
	if p.SessionID == "" {
		return fmt.Errorf("override: patch session id is required")
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("override: marshal patch %s: %w", p.SessionID, err)
	}
	if err := c.kv.Put(key(p.SessionID), data); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[p.SessionID] = StateLocallyOverridden
	return nil
}

// Load returns the pending patch for sessionID, or nil when none exists.
func (c *Cache) Load(sessionID string) (*Patch, error) {
	data, err := c.kv.Get(key(sessionID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("override: decode patch %s: %w", sessionID, err)
	}
	return &p, nil
}

// Clear drops the patch for sessionID and returns the session to clean.
func (c *Cache) Clear(sessionID string) error {
	if err := c.kv.Delete(key(sessionID)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[sessionID] = StateClean
	return nil
}

// List returns every stored patch ordered by session id.
func (c *Cache) List() ([]Patch, error) {
	keys, err := c.kv.Keys(keyPrefix)
	if err != nil {
		return nil, err
	}
	patches := make([]Patch, 0, len(keys))
	for _, k := range keys {
		p, err := c.Load(strings.TrimPrefix(k, keyPrefix))
		if err != nil {
			return nil, err
		}
		if p != nil {
			patches = append(patches, *p)
		}
	}
	return patches, nil
}

// State reports where sessionID is in the save lifecycle. A patch found in
// the store after a restart counts as locally overridden.
func (c *Cache) State(sessionID string) State {
	c.mu.Lock()
	st, ok := c.states[sessionID]
	c.mu.Unlock()
	if ok && st != StateClean {
		return st
	}
	if p, err := c.Load(sessionID); err == nil && p != nil {
		return StateLocallyOverridden
	}
	if ok {
		return st
	}
	return StateClean
}
