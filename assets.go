//go:build !dev

package main

import (
	"embed"
	"io/fs"
)

//go:embed web
var embeddedWeb embed.FS

func getWebAssets() (fs.FS, error) {
	return fs.Sub(embeddedWeb, "web")
}
