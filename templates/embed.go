// Package templates holds the HTML served by the chat server.
package templates

import "embed"

//go:embed *.html
var FS embed.FS
