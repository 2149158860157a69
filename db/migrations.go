// Package db embeds the catalog schema migrations for each supported dialect.
package db

import (
	"embed"
	"io/fs"
)

//go:embed pg/*.sql sqlite/*.sql
var migrations embed.FS

// Migrations returns the migration folder for a database driver name.
func Migrations(driverName string) (fs.FS, string) {
	if driverName == "sqlite3" {
		return migrations, "sqlite"
	}
	return migrations, "pg"
}
