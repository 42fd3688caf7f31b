// Package migrations embeds the SQL applied by gormrepo.ApplyMigrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
