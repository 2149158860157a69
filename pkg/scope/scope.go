// Package scope finds the ranking configurations a merge touches and
// schedules their recalculation once the merge has committed.
package scope

import (
	"context"
	"sort"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Scope is the set of downstream aggregates affected by one merge.
type Scope struct {
	Kind             models.EntityKind `json:"kind"`
	ConfigurationIDs []string          `json:"configuration_ids"`
}

// Empty reports whether no configuration is affected.
func (s Scope) Empty() bool {
	return len(s.ConfigurationIDs) == 0
}

// ConfigurationReader lists ranking configurations holding any of the entities.
type ConfigurationReader interface {
	ConfigurationIDs(ctx context.Context, kind models.EntityKind, entityIDs ...string) ([]string, error)
}

// Collector snapshots the affected scope inside the merge transaction.
type Collector struct {
	items ConfigurationReader
}

func NewCollector(items ConfigurationReader) *Collector {
	return &Collector{items: items}
}

// Snapshot returns the distinct, sorted configuration ids referencing any of ids.
func (c *Collector) Snapshot(ctx context.Context, kind models.EntityKind, ids ...string) (Scope, error) {
	ctx, span := tracing.StartSpan(ctx, "scope.Collector.Snapshot")
	defer span.End()

	configIDs, err := c.items.ConfigurationIDs(ctx, kind, ids...)
	if err != nil {
		return Scope{}, err
	}

	unique := make([]string, 0, len(configIDs))
	for _, id := range configIDs {
		if !ectolinq.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)
	return Scope{Kind: kind, ConfigurationIDs: unique}, nil
}
