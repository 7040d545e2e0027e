// Package migrations embeds the SQL migrations, one directory per database.
package migrations

import "embed"

//go:embed mysql/*.sql clickhouse/*.sql
var FS embed.FS
