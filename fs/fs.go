// Package appfs embeds the files the binaries need at runtime: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_base.*
var FS embed.FS
