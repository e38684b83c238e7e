// Package migrations embeds the SQL schema migrations applied by goose
// when the request store is opened.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
