package merging

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/scope"
)

// Result is returned by every merge, successful or not.
type Result struct {
	OK       bool              `json:"ok"`
	Survivor *models.EntityRef `json:"survivor,omitempty"`
	Stats    map[string]int    `json:"stats"`
	Error    *Error            `json:"error,omitempty"`
}

func failed(err error) Result {
	return Result{OK: false, Stats: map[string]int{}, Error: Classify(err)}
}

// Outcome describes a committed merge to the after-commit hooks.
type Outcome struct {
	Kind     models.EntityKind `json:"kind"`
	Source   models.EntityRef  `json:"source"`
	Target   models.EntityRef  `json:"target"`
	Stats    map[string]int    `json:"stats"`
	Scope    scope.Scope       `json:"scope"`
	AuditID  string            `json:"audit_id"`
	MergedBy *string           `json:"merged_by,omitempty"`
	MergedAt time.Time         `json:"merged_at"`
}
