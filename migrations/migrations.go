// Package migrations embeds the SQL schema so the server and the CLI can
// migrate without a checkout of this directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
