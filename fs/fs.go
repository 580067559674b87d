// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

var (
	//go:embed migrations assets
	FS embed.FS

	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	CommonPasswords   = "assets/common-passwords.txt.gz"
)
