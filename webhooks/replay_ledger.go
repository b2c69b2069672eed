package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultReplayLedgerTTL = 5 * time.Minute
const defaultReplayLedgerMaxEntries = 8192

// ReplayLedger claims delivery IDs so duplicate webhook deliveries inside the
// grace window are acknowledged without re-running the handler.
type ReplayLedger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (claimID string, claimed bool, err error)
}

type replayEntry struct {
	claimID   string
	expiresAt time.Time
}

type MemoryReplayLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]replayEntry
	Now        func() time.Time
}

func NewMemoryReplayLedger(defaultTTL time.Duration) *MemoryReplayLedger {
	return NewMemoryReplayLedgerWithLimits(defaultTTL, defaultReplayLedgerMaxEntries)
}

func NewMemoryReplayLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryReplayLedger {
	if defaultTTL <= 0 {
		defaultTTL = defaultReplayLedgerTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultReplayLedgerMaxEntries
	}
	return &MemoryReplayLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]replayEntry{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryReplayLedger) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil {
		return "", false, fmt.Errorf("webhooks: replay ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("webhooks: replay key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneExpiredLocked(now)
	if entry, ok := l.entries[key]; ok {
		if now.Before(entry.expiresAt) {
			return entry.claimID, false, nil
		}
		delete(l.entries, key)
	}
	l.enforceCapacityLocked(now, 1)
	claimID := uuid.NewString()
	l.entries[key] = replayEntry{
		claimID:   claimID,
		expiresAt: now.Add(ttl),
	}
	return claimID, true, nil
}

func (l *MemoryReplayLedger) PurgeExpired(_ context.Context) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("webhooks: replay ledger is not configured")
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	pruned := 0
	for key, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, key)
			pruned++
		}
	}
	return pruned, nil
}

func (l *MemoryReplayLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryReplayLedger) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.entries {
		if !now.Before(entry.expiresAt) {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryReplayLedger) enforceCapacityLocked(now time.Time, incoming int) {
	for len(l.entries)+incoming > l.maxEntries {
		oldestKey := ""
		oldestExpiry := time.Time{}
		for key, entry := range l.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
				oldestKey = key
				oldestExpiry = entry.expiresAt
			}
		}
		if oldestKey == "" {
			return
		}
		delete(l.entries, oldestKey)
	}
}

var _ ReplayLedger = (*MemoryReplayLedger)(nil)
