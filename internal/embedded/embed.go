// Package embedded carries the built-in source definitions compiled into
// the binary. Definitions hold the non-secret connection defaults for each
// remote system; secrets always come from the environment.
package embedded

import (
	"embed"
)

// FS embeds all source definition yaml files at build time.
//
//go:embed definitions/*.yaml
var FS embed.FS

// DefinitionsPath is the directory inside FS holding the yaml files.
const DefinitionsPath = "definitions"
