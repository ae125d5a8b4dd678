// Package migrations embeds the PostgreSQL schema for report sessions and the email delivery audit trail.
package migrations

import "embed"

// FS holds the numbered up and down SQL files.
//
//go:embed *.sql
var FS embed.FS
