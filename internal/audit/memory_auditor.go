package audit

import (
	"sync"

	"github.com/localparts/tokenbridge/internal/core"
)

// maxRetained bounds how many entries the in-memory auditor keeps.
// Older entries are dropped; this is a debugging aid, not durable storage.
const maxRetained = 1000

var _ core.Auditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor retains recent translation events in memory. It backs
// the /debug/audit endpoint.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > maxRetained {
		i.entries = i.entries[len(i.entries)-maxRetained:]
	}
	return nil
}

// GetRecent returns up to limit of the most recent entries, oldest first.
func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) {
		limit = len(i.entries)
	}
	start := len(i.entries) - limit
	entries := make([]core.AuditEntry, limit)
	copy(entries, i.entries[start:])

	return entries, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
