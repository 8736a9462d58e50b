// Package migrations embeds the schema for each supported database
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the SQLite migration files
func SQLite() fs.FS {
	return sub("sqlite")
}

// Postgres returns the PostgreSQL migration files
func Postgres() fs.FS {
	return sub("postgres")
}

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		// dir is a compile-time constant covered by the embed pattern
		panic(err)
	}
	return f
}
