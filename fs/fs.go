// Package appfs embeds the static files shipped with the binaries:
// database migrations, email templates and the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql assets
var FS embed.FS
