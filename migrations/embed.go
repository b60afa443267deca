package migrations

import "embed"

// Postgres embeds the PostgreSQL schema migrations.
//
//go:embed postgres/*.sql
var Postgres embed.FS
