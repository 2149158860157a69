package models

// RankedItem places one entity inside a ranking configuration. The ranking
// worker owns rank and score; merges only move or delete the row.
type RankedItem struct {
	ID                     string     `json:"id" db:"id"`
	RankingConfigurationID string     `json:"ranking_configuration_id" db:"ranking_configuration_id"`
	EntityKind             EntityKind `json:"entity_kind" db:"entity_kind"`
	EntityID               string     `json:"entity_id" db:"entity_id"`
	Rank                   *int64     `json:"rank,omitempty" db:"rank"`
	Score                  *float64   `json:"score,omitempty" db:"score"`
}
