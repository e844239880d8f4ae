package assets

import "embed"

// WebFS holds the admin page templates and their static files.
//
//go:embed all:web
var WebFS embed.FS

//go:embed all:migrations
var MigrationsFS embed.FS
