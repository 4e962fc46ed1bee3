package ledger

import "context"

// MemorySource serves a fixed set of pre-built rows. Used by tests and
// by callers embedding the engine with an already-parsed ledger.
type MemorySource struct {
	rows [][3]string // entity_id, event_type, event_date
}

// NewMemorySource creates an empty in-memory ledger source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// Add appends one raw row. Validation happens at Load, the same as for
// file-backed sources.
func (s *MemorySource) Add(entityID, eventType, date string) *MemorySource {
	s.rows = append(s.rows, [3]string{entityID, eventType, date})
	return s
}

// Load validates every row under the shared row-fault taxonomy.
func (s *MemorySource) Load(ctx context.Context) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &LoadResult{Skipped: make(map[SkipReason]int)}
	for _, row := range s.rows {
		result.validateRow(row[0], row[1], row[2])
	}
	return result, nil
}
