// Package static embeds the stylesheet and other public assets.
package static

import "embed"

//go:embed style.css default-avatar.svg
var FS embed.FS
