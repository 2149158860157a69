package database

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"artists", true},
		{"from_artist_id", true},
		{"_private", true},
		{"album2", true},
		{"", false},
		{"2albums", false},
		{"Artists", false},
		{"artists; DROP TABLE artists", false},
		{"a.b", false},
		{"a-b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidIdentifier(tt.name))
		})
	}
}

func TestLockForUpdate(t *testing.T) {
	pg := sqlbuilder.PostgreSQL.NewSelectBuilder()
	pg.Select("id").From("artists")
	query, _ := LockForUpdate(pg, sqlbuilder.PostgreSQL).Build()
	assert.Contains(t, query, "FOR UPDATE")

	lite := sqlbuilder.SQLite.NewSelectBuilder()
	lite.Select("id").From("artists")
	query, _ = LockForUpdate(lite, sqlbuilder.SQLite).Build()
	assert.NotContains(t, query, "FOR UPDATE")
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.SQLite, FlavorFor(DriverSQLite))
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPostgres))
}

func TestJSONBScan(t *testing.T) {
	var fromString JSONB[map[string]int]
	assert.NoError(t, fromString.Scan(`{"credits":2}`))
	assert.Equal(t, 2, fromString.Data["credits"])

	var fromBytes JSONB[map[string]int]
	assert.NoError(t, fromBytes.Scan([]byte(`{"images":1}`)))
	assert.Equal(t, 1, fromBytes.Data["images"])

	var bad JSONB[map[string]int]
	assert.Error(t, bad.Scan(42))

	value, err := NewJSONB(map[string]int{"a": 1}).Value()
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, value)
}
