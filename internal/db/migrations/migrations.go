// Package migrations embeds the audit schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
