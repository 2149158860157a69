package database

import (
	"fmt"
	"regexp"

	"github.com/huandu/go-sqlbuilder"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FlavorFor maps a sqlx driver name to its SQL dialect.
func FlavorFor(driverName string) sqlbuilder.Flavor {
	if driverName == DriverSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}

// ValidIdentifier reports whether name is safe to splice into SQL as a table or column.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Column qualifies column with a table or alias.
func Column(table, column string) string {
	return fmt.Sprintf("%s.%s", table, column)
}

// Equals is a raw column-to-column comparison for correlated subqueries.
func Equals(left, right string) string {
	return fmt.Sprintf("%s = %s", left, right)
}

// LockForUpdate adds a row lock where the dialect supports one. SQLite
// serializes writers through its immediate transaction instead.
func LockForUpdate(sb *sqlbuilder.SelectBuilder, flavor sqlbuilder.Flavor) *sqlbuilder.SelectBuilder {
	if flavor == sqlbuilder.PostgreSQL {
		return sb.ForUpdate()
	}
	return sb
}
