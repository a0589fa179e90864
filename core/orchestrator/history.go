package orchestrator

import (
	"sync"
	"time"

	"github.com/infinri/neural-forge/core/cache"
	"github.com/infinri/neural-forge/pkg/clock"
)

// projectHistory is a fixed-capacity ring buffer of recent message content
// for one project, plus the last time it was touched.
type projectHistory struct {
	mu         sync.Mutex
	messages   []string
	capacity   int
	lastActive time.Time
}

func newProjectHistory(capacity int, now time.Time) *projectHistory {
	return &projectHistory{
		messages:   make([]string, 0, capacity),
		capacity:   capacity,
		lastActive: now,
	}
}

func (p *projectHistory) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *projectHistory) append(content string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, content)
	if len(p.messages) > p.capacity {
		p.messages = p.messages[len(p.messages)-p.capacity:]
	}
	p.lastActive = now
}

// historyTracker bounds per-project message history both by an LRU over
// tracked projects and by an idle-TTL sweep, so the map can never grow
// without bound regardless of how many distinct projects appear.
type historyTracker struct {
	cache   *cache.LRUCache[string, *projectHistory]
	clock   clock.Clock
	maxLen  int
	idleTTL time.Duration
}

func newHistoryTracker(cfg Config, clk clock.Clock) *historyTracker {
	return &historyTracker{
		cache:   cache.NewLRUCache[string, *projectHistory](cfg.HistoryMaxProjects),
		clock:   clk,
		maxLen:  cfg.HistoryMaxLen,
		idleTTL: time.Duration(cfg.HistoryIdleTTLSeconds) * time.Second,
	}
}

// Snapshot returns the current history for projectID without recording
// activity.
func (t *historyTracker) Snapshot(projectID string) []string {
	h, ok := t.cache.Get(projectID)
	if !ok {
		return nil
	}
	return h.snapshot()
}

// Append records content against projectID's history, creating the
// project's entry if this is its first message.
func (t *historyTracker) Append(projectID, content string) {
	now := t.clock.Now()
	h, ok := t.cache.Get(projectID)
	if !ok {
		h = newProjectHistory(t.maxLen, now)
		t.cache.Put(projectID, h)
	}
	h.append(content, now)
}

// SweepIdle evicts every project whose history has been idle for longer
// than idleTTL.
func (t *historyTracker) SweepIdle() {
	for _, key := range t.cache.Keys() {
		h, ok := t.cache.Peek(key)
		if !ok {
			continue
		}
		h.mu.Lock()
		idle := t.clock.Since(h.lastActive)
		h.mu.Unlock()
		if idle >= t.idleTTL {
			t.cache.Remove(key)
		}
	}
}
