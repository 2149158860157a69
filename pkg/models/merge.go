package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// MergeAudit records a committed merge. It is written inside the merge
// transaction so it exists only when the merge does.
type MergeAudit struct {
	ID         string                         `json:"id" db:"id"`
	EntityKind EntityKind                     `json:"entity_kind" db:"entity_kind"`
	SourceID   string                         `json:"source_id" db:"source_id"`
	TargetID   string                         `json:"target_id" db:"target_id"`
	Stats      database.JSONB[map[string]int] `json:"stats" db:"stats"`
	MergedBy   *string                        `json:"merged_by,omitempty" db:"merged_by"`
	CreatedAt  time.Time                      `json:"created_at" db:"created_at"`
}
