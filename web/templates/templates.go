// Package templates embeds the server-rendered HTML views.
package templates

import "embed"

//go:embed *.html layouts/*.html
var FS embed.FS
