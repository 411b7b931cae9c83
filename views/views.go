// Package views embeds the default storefront templates. Files in the
// configured views directory take precedence over these.
package views

import "embed"

//go:embed *.html
var FS embed.FS
